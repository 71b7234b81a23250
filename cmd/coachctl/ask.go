package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

func newAskCmd(opts *options) *cobra.Command {
	var audio, image string
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Run one coaching turn",
		Example: `  coachctl ask -u alice "I want to lose weight"
  coachctl ask --image /data/meal.jpg "what about this?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && audio == "" {
				return errors.New("text or --audio is required")
			}
			ep := worker.Endpoint{Name: envelope.ServiceOrchestrator, URL: opts.orchestrator}
			reply, raw, err := call[envelope.TurnReply](cmd.Context(), opts, ep, envelope.ProcessUserInput{
				Task:      envelope.TaskProcessUserInput,
				UserInput: text,
				AudioPath: audio,
				ImagePath: image,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.raw {
				return printJSON(out, raw)
			}

			if reply.SpeechTranscription != nil {
				fmt.Fprintf(out, "heard:  %s\n", reply.SpeechTranscription.OutputText)
			}
			if reply.MoodState != nil {
				fmt.Fprintf(out, "mood:   %s (%.2f)\n", reply.MoodState.MoodLabel, reply.MoodState.Score)
			}
			names := make([]string, 0, len(reply.CalledServices))
			for _, c := range reply.CalledServices {
				names = append(names, c.Service)
			}
			fmt.Fprintf(out, "called: %s\n", strings.Join(names, ", "))
			if reply.CoachAnswer == nil {
				fmt.Fprintln(out, "coach:  (no answer)")
				return nil
			}
			fmt.Fprintf(out, "coach:  %s\n", *reply.CoachAnswer)
			return nil
		},
	}
	cmd.Flags().StringVar(&audio, "audio", "", "audio file path to transcribe")
	cmd.Flags().StringVar(&image, "image", "", "meal image path to analyze")
	return cmd
}
