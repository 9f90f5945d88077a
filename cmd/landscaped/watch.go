package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/landscapehq/landscape/internal/model"
	"github.com/landscapehq/landscape/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch [types...]",
	Short:   "Tail the live event stream",
	GroupID: "catalog",
	Long: `Tail the server's live event stream and print one line per event.

Optional arguments filter by event type, e.g.:

  landscaped watch card.created card.deleted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, raw := range args {
			if !model.EventType(raw).IsValid() {
				return fmt.Errorf("unknown event type %q", raw)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// The server drops slow or evicted subscribers by closing the
		// stream, so reconnect with backoff until interrupted.
		backoff := time.Second
		for {
			err := catalog.StreamEvents(ctx, args, printEvent)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "%s reconnecting: %v\n", ui.RenderMuted("--"), err)
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	},
}

func printEvent(evt *model.Event) {
	if jsonOutput {
		data, err := json.Marshal(evt)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}
	line := ui.FormatEvent(evt)
	if evt.Type == model.EventCardUpdated && len(evt.Changes) > 0 {
		var changes map[string]any
		if json.Unmarshal(evt.Changes, &changes) == nil && len(changes) > 0 {
			fields := make([]string, 0, len(changes))
			for f := range changes {
				fields = append(fields, f)
			}
			line += "  " + ui.RenderMuted("("+strings.Join(fields, ", ")+")")
		}
	}
	fmt.Println(line)
}
