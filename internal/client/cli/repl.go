package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ShowProfile(ctx context.Context) error
	EditProfile(ctx context.Context) error
	Chats(ctx context.Context, query string) error
	Contacts(ctx context.Context, query string) error
	Chat(ctx context.Context, ref string) error
	Open(ctx context.Context, ref string) error
	History(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Resend(ctx context.Context, ref string) error
	Discard(ctx context.Context, ref string) error
	CloseChat(ctx context.Context) error
	Delete(ctx context.Context, ref string) error
}

// runREPL starts a simple read-eval-print loop for the QuickChat client.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'; the rest of the line is the argument.
// Handler errors are printed and the loop goes on. The loop exits on EOF or
// when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help                 show available commands
//	  - login                sign in with a phone number and code
//	  - exit | quit          leave the program
//
//	Logged in:
//	  - chats [query]        list conversations
//	  - contacts [query]     list people
//	  - chat <n|user id>     open or start a chat with a contact
//	  - open <n|chat id>     open a listed chat
//	  - history              show the open chat again
//	  - send <text>          send a message to the open chat
//	  - resend <key>         retry a failed message
//	  - discard <key>        drop a failed message
//	  - close                close the open chat
//	  - delete [n|chat id]   delete a chat (the open one by default)
//	  - profile              show your profile
//	  - editprofile          edit your profile
//	  - logout               sign out
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("qc %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		if cmd == "" {
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: chats, contacts, chat, open, history, send, resend, discard, close, delete, profile, editprofile, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}

		case "login":
			report(a.Login(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "profile":
			report(a.ShowProfile(ctx))

		case "editprofile":
			report(a.EditProfile(ctx))

		case "chats", "l":
			report(a.Chats(ctx, arg))

		case "contacts":
			report(a.Contacts(ctx, arg))

		case "chat":
			report(a.Chat(ctx, arg))

		case "open":
			report(a.Open(ctx, arg))

		case "history":
			report(a.History(ctx))

		case "send", "say":
			report(a.Send(ctx, arg))

		case "resend":
			report(a.Resend(ctx, arg))

		case "discard":
			report(a.Discard(ctx, arg))

		case "close":
			report(a.CloseChat(ctx))

		case "delete":
			report(a.Delete(ctx, arg))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
