package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"guessrank/internal/api"
)

func newScoreboardCommand(ctx *commandContext) *cobra.Command {
	var guild string
	var page int

	cmd := &cobra.Command{
		Use:   "scoreboard",
		Short: "Show a guild's leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := requireGuild(guild)
			if err != nil {
				return err
			}
			return ctx.withCommands(func(svc *api.Service) error {
				board, err := svc.Scoreboard(cmd.Context(), guildID, page)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, board)
				}
				out := cmd.OutOrStdout()
				if board.Players == 0 {
					fmt.Fprintln(out, "No scores recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(board.Rows))
				for _, row := range board.Rows {
					name := row.Username
					if name == "" {
						name = row.UserID
					}
					rows = append(rows, []string{
						strconv.Itoa(row.Position),
						name,
						formatScore(row.TotalScore),
						strconv.Itoa(row.GamesPlayed),
						strconv.Itoa(row.CorrectGuesses),
						strconv.Itoa(row.BestStreak),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{"#", alignRight},
					{"Player", alignLeft},
					{"Points", alignRight},
					{"Games", alignRight},
					{"Correct", alignRight},
					{"Best streak", alignRight},
				}, rows))
				fmt.Fprintf(out, "Page %d/%d, %d players\n", board.Page, board.Pages, board.Players)
				return nil
			})
		},
	}
	addGuildFlag(cmd, &guild)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Leaderboard page")
	return cmd
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "results [clip-id]",
		Short: "List finished clips, or show one clip's vote breakdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := requireGuild(guild)
			if err != nil {
				return err
			}
			return ctx.withCommands(func(svc *api.Service) error {
				if len(args) == 1 {
					clip, err := svc.ResultDetail(cmd.Context(), guildID, args[0])
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, clip)
					}
					printClipResult(cmd, clip)
					return nil
				}

				results, err := svc.Results(cmd.Context(), guildID)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results.Clips) == 0 {
					fmt.Fprintln(out, "No finished clips")
					return nil
				}
				rows := make([][]string, 0, len(results.Clips))
				for _, clip := range results.Clips {
					rows = append(rows, []string{
						clip.ID,
						clip.CorrectRank,
						strconv.Itoa(clip.TotalVotes),
						strconv.Itoa(clip.CorrectVoters),
						formatStamp(clip.ExpiredAt),
					})
				}
				fmt.Fprint(out, renderTable([]tableColumn{
					{"Clip", alignLeft},
					{"Rank", alignLeft},
					{"Votes", alignRight},
					{"Correct", alignRight},
					{"Ended", alignLeft},
				}, rows))
				return nil
			})
		},
	}
	addGuildFlag(cmd, &guild)
	return cmd
}

func printClipResult(cmd *cobra.Command, clip api.ClipResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Clip %s\n", clip.ID)
	fmt.Fprintf(out, "Correct rank: %s\n", clip.CorrectRank)
	if clip.SubmitterName != "" {
		fmt.Fprintf(out, "Submitted by: %s\n", clip.SubmitterName)
	}
	fmt.Fprintf(out, "Votes: %d (%d correct)\n", clip.TotalVotes, clip.CorrectVoters)
	if len(clip.Tally) == 0 {
		return
	}
	rows := make([][]string, 0, len(clip.Tally))
	for _, row := range clip.Tally {
		mark := ""
		if row.Correct {
			mark = "✓"
		}
		rows = append(rows, []string{row.Rank, strconv.Itoa(row.Count), formatPercent(row.Percent), mark})
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{"Rank", alignLeft},
		{"Votes", alignRight},
		{"Share", alignRight},
		{"", alignLeft},
	}, rows))
}

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show a player's stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := requireGuild(guild)
			if err != nil {
				return err
			}
			return ctx.withCommands(func(svc *api.Service) error {
				profile, err := svc.Profile(cmd.Context(), guildID, args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, profile)
				}
				out := cmd.OutOrStdout()
				name := profile.Username
				if name == "" {
					name = profile.UserID
				}
				fmt.Fprintf(out, "%s (#%d of %d)\n", name, profile.Position, profile.Players)
				fmt.Fprintf(out, "Points:   %s\n", formatScore(profile.TotalScore))
				fmt.Fprintf(out, "Games:    %d\n", profile.GamesPlayed)
				fmt.Fprintf(out, "Correct:  %d (%s)\n", profile.CorrectGuesses, formatPercent(profile.Accuracy))
				fmt.Fprintf(out, "Streak:   %d (best %d)\n", profile.CurrentStreak, profile.BestStreak)
				if len(profile.History) > 0 {
					rows := make([][]string, 0, len(profile.History))
					for _, h := range profile.History {
						rows = append(rows, []string{h.ClipID, h.Guessed, h.Correct, formatScore(h.Points)})
					}
					fmt.Fprint(out, renderTable([]tableColumn{
						{"Clip", alignLeft},
						{"Guessed", alignLeft},
						{"Actual", alignLeft},
						{"Points", alignRight},
					}, rows))
				}
				return nil
			})
		},
	}
	addGuildFlag(cmd, &guild)
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "cleanup [count]",
		Short: "Delete the oldest finished clips (all of them without a count)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := requireGuild(guild)
			if err != nil {
				return err
			}
			count := 0
			if len(args) == 1 {
				count, err = strconv.Atoi(args[0])
				if err != nil || count < 1 {
					return fmt.Errorf("count must be a positive integer, got %q", args[0])
				}
			}
			return ctx.withCommands(func(svc *api.Service) error {
				result, err := svc.Cleanup(cmd.Context(), guildID, count, api.Caller{UserID: "cli", Username: "cli", Admin: true})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if len(result.Removed) == 0 {
					fmt.Fprintln(out, "No finished clips to remove")
					return nil
				}
				fmt.Fprintf(out, "Removed %d clips, %d remaining\n", len(result.Removed), result.Remaining)
				return nil
			})
		},
	}
	addGuildFlag(cmd, &guild)
	return cmd
}
