package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-therapy/internal/app/conversation"
	"github.com/PabloGalante/farum-therapy/internal/config"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
)

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("log-level")
	observability.SetLevel(level)

	ctx := cmd.Context()
	svc, err := buildService(ctx, cfg, nil)
	if err != nil {
		return err
	}

	started, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	if err != nil {
		return err
	}
	id := started.State.SessionID
	defer func() { _ = svc.EndSession(ctx, id) }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "farum: %s\n", started.Welcome.Content)
	fmt.Fprintln(out, "(type /quit to leave)")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "you: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		res, err := svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: id, Text: line})
		if err != nil {
			fmt.Fprintf(out, "farum: (could not process that: %v)\n", err)
			continue
		}
		fmt.Fprintf(out, "farum: %s\n", res.Reply.Content)
		if res.Reply.Flag(domain.MetaCrisis) {
			fmt.Fprintln(out, "       If you are in immediate danger, please call your local emergency number.")
		}
	}
}
