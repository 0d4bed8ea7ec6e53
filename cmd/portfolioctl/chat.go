package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/portfolio-pulse/internal/chat"
)

func chatCMD(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the portfolio assistant",
		Long:  "Sends one message when given arguments, otherwise reads messages from stdin. Type /clear to reset the conversation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printer := &replyPrinter{w: out}
			tp := p.NewChat(chat.WithOnUpdate(printer.update))

			send := func(text string) {
				printer.reset()
				if _, err := tp.Send(cmd.Context(), text); err != nil {
					fmt.Fprintln(out, err)
					return
				}
				fmt.Fprintln(out)
			}

			if len(args) > 0 {
				send(strings.Join(args, " "))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				switch line := strings.TrimSpace(scanner.Text()); line {
				case "":
				case "/clear":
					tp.Clear(cmd.Context())
					fmt.Fprintln(out, "(conversation cleared)")
				case "/quit":
					return nil
				default:
					send(line)
				}
			}
			return scanner.Err()
		},
	}
	return cmd
}

// replyPrinter writes the assistant reply incrementally as the transcript
// grows.
type replyPrinter struct {
	w       io.Writer
	printed string
}

func (r *replyPrinter) reset() {
	r.printed = ""
}

func (r *replyPrinter) update(msgs []chat.Message) {
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleAssistant || last.Content == r.printed {
		return
	}
	if strings.HasPrefix(last.Content, r.printed) {
		fmt.Fprint(r.w, last.Content[len(r.printed):])
	} else {
		// The final message differs from the streamed chunks: erase what
		// was printed and redraw in place.
		fmt.Fprint(r.w, eraseLines(strings.Count(r.printed, "\n"))+last.Content)
	}
	r.printed = last.Content
}

// eraseLines returns the ANSI sequence that moves the cursor to the start of
// the line n lines up and clears everything below it.
func eraseLines(n int) string {
	if n == 0 {
		return "\r\033[J"
	}
	return fmt.Sprintf("\r\033[%dA\033[J", n)
}
