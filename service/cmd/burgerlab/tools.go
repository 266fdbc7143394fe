package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/auth"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/jason-s-yu/burgerlab/service/internal/study"
	"github.com/spf13/cobra"
)

func (c *cli) simulateCmd() *cobra.Command {
	var (
		participant   string
		seed          uint64
		participantID int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one session headless and print its results",
		Long: `simulate drives a full session with a scripted participant. The guided
participant follows the strict-guidance choreography; the random participant
picks uniformly among legal moves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p study.Participant
			switch strings.ToLower(participant) {
			case "guided":
				p = study.GuidedParticipant
			case "random":
				p = study.RandomParticipant(seed)
			default:
				return fmt.Errorf("unknown participant %q (want guided or random)", participant)
			}
			if participantID < models.MinParticipantID || participantID > models.MaxParticipantID {
				return fmt.Errorf("participant id %d outside %d-%d", participantID, models.MinParticipantID, models.MaxParticipantID)
			}

			b, err := c.loadBundle()
			if err != nil {
				return err
			}
			st, err := engine.NewStudy(b.Graph, b.Strategy, b.Layout, c.cfg.Rules, participantID)
			if err != nil {
				return err
			}
			res, err := study.Simulate(cmd.Context(), st, c.cfg.TickInterval, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"participant=%d mode=%s steps=%d violations=%d human_burgers=%d robot_burgers=%d\n",
				res.ParticipantID, res.AdviserMode, res.StepsTaken, res.SafetyViolated, res.HumanBurgers, res.RobotBurgers)
			return nil
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "guided", "simulated participant: guided or random")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for the random participant")
	cmd.Flags().IntVar(&participantID, "id", models.MinParticipantID, "participant id recorded in the results")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the synthesis artifacts for integrity faults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := c.loadBundle()
			if err != nil {
				return err
			}
			reachable := b.Graph.Reachable(b.Graph.Init)
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s: %d nodes (%d reachable), %d edges, %d strategy entries, %d safety, %d fairness advisers\n",
				b.Dir, len(b.Graph.Nodes), len(reachable), len(b.Graph.Edges),
				len(b.Strategy.Table), len(b.Strategy.Safety), len(b.Strategy.Fairness))
			return nil
		},
	}
}

func (c *cli) dotCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Write the product game graph in Graphviz DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := c.loadBundle()
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			bw := bufio.NewWriter(w)
			if err := b.Graph.WriteDOT(bw); err != nil {
				return err
			}
			return bw.Flush()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func (c *cli) hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
