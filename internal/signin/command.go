package signin

// FullCommand builds the first-time sign-in that registers the account with
// the vault CLI and signs in.
func FullCommand(bin, domain, email, shorthand string) []string {
	return []string{bin, "account", "add",
		"--address", domain,
		"--email", email,
		"--shorthand", shorthand,
		"--signin", "--raw",
	}
}

// ShortCommand builds the sign-in for an account the vault CLI already knows.
func ShortCommand(bin, account string) []string {
	return []string{bin, "signin", "--account", account, "--raw"}
}

// SSOCommand builds the browser-based sign-in.
func SSOCommand(bin, account string) []string {
	return []string{bin, "signin", "--account", account}
}
