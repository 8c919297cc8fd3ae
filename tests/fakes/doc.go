// Package fakes provides hand-written test doubles for opsession's
// collaborators: a scripted pseudo-terminal child and spawner, a scripted
// prompter, an in-memory environment and an in-memory keychain.
//
// Usage:
//
//	proc := fakes.NewFakeProcess(
//	    fakes.Step{Output: "Enter the password for jane@acme.com: ", AwaitInput: true},
//	    fakes.Step{Output: "\r\ntoken\r\n"},
//	)
//	driver := signin.New(signin.Config{Spawner: fakes.NewFakeSpawner(proc)})
package fakes
