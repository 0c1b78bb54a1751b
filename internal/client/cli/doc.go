// Package cli provides the interactive QuickChat terminal client.
//
// It wires configuration, the local credential store, the backend client,
// the realtime feed and the application services, then runs a REPL on top
// of them. Typical flow: restore the saved session (or log in with a phone
// number and one-time code), list chats, open one and talk.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp, StartOnlineStatusWatcher, and runREPL for details.
package cli
