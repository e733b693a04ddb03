package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/config"
	"github.com/roach88/mealplan/internal/mutator"
	"github.com/roach88/mealplan/internal/plan"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Day    string
	Member string
	Actor  string
	Food   string
	Clear  bool
	Note   string
	File   string
}

// EntryResult is the outcome of a single member edit.
type EntryResult struct {
	PlanID   string                `json:"plan_id"`
	Day      plan.DayKey           `json:"day"`
	MemberID string                `json:"member_id"`
	Entry    plan.MemberOrderEntry `json:"entry"`
}

func (r EntryResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s on day %s: %s", r.MemberID, r.Day, r.Entry.Status)
	if r.Entry.FoodID != "" {
		fmt.Fprintf(w, " (%s)", r.Entry.FoodID)
	}
	fmt.Fprintln(w)
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <plan-id>",
		Short: "Change a member's food selection or note",
		Long: `Change one member entry, or apply a batch of edits from a file.

A single edit selects a food (--food), clears the selection (--clear) or
replaces the member's note (--note). --day takes a YYYY-MM-DD date in the
order's timezone or a raw day key.

A batch file applies every listed edit in one locked cycle; if any edit is
refused, none is written.

Examples:
  mealplan edit plan-1 --day 2024-03-04 --member alice --food f1
  mealplan edit plan-1 --day 2024-03-04 --member alice --note "no peanuts"
  mealplan edit plan-1 --file ./edits.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.File != "" {
				return runBatchEdit(cmd, opts, args[0])
			}
			return runEdit(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Day, "day", "", "day as YYYY-MM-DD or day key")
	cmd.Flags().StringVar(&opts.Member, "member", "", "member id")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "acting user (defaults to the member)")
	cmd.Flags().StringVar(&opts.Food, "food", "", "food id to select")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "clear the food selection")
	cmd.Flags().StringVar(&opts.Note, "note", "", "replace the member's requirement note")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML batch of edits")

	return cmd
}

func (o *EditOptions) edit(cmd *cobra.Command) (plan.Edit, error) {
	chosen := 0
	var edit plan.Edit
	if o.Food != "" {
		chosen++
		edit = plan.SetFood(o.Food)
	}
	if o.Clear {
		chosen++
		edit = plan.SetFood("")
	}
	if cmd.Flags().Changed("note") {
		chosen++
		edit = plan.SetRequirement(o.Note)
	}
	if chosen != 1 {
		return plan.Edit{}, NewExitError(ExitCommandError, "exactly one of --food, --clear or --note is required")
	}
	return edit, nil
}

func runEdit(cmd *cobra.Command, opts *EditOptions, planID string) error {
	if opts.Member == "" {
		return NewExitError(ExitCommandError, "--member is required")
	}
	edit, err := opts.edit(cmd)
	if err != nil {
		return err
	}
	actor := opts.Actor
	if actor == "" {
		actor = opts.Member
	}

	return withRuntime(cmd, opts.RootOptions, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
		day, err := resolveDay(ctx, rt, planID, opts.Day)
		if err != nil {
			return err
		}
		entry, err := rt.Mutator.SubmitMemberEdit(ctx, actor, planID, day, opts.Member, edit)
		if err != nil {
			return err
		}
		res := EntryResult{PlanID: planID, Day: day, MemberID: opts.Member, Entry: entry}
		return out.Result(res, res.writeText)
	})
}

// BatchResult is the outcome of a batch edit.
type BatchResult struct {
	PlanID  string        `json:"plan_id"`
	Actor   string        `json:"actor"`
	Entries []EntryResult `json:"entries"`
}

func runBatchEdit(cmd *cobra.Command, opts *EditOptions, planID string) error {
	batch, err := config.LoadEditBatch(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load edits", err)
	}

	return withRuntime(cmd, opts.RootOptions, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
		actions := make([]mutator.EditAction, 0, len(batch.Edits))
		for i, line := range batch.Edits {
			day, err := resolveDay(ctx, rt, planID, line.Day)
			if err != nil {
				return err
			}
			edit, err := line.Edit()
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("edit %d", i+1), err)
			}
			actions = append(actions, mutator.EditAction{Day: day, MemberID: line.Member, Edit: edit})
		}

		expected, err := rt.Mutator.Session(batch.Actor).SubmitEdits(ctx, planID, actions)
		if err != nil {
			return err
		}

		res := BatchResult{PlanID: planID, Actor: batch.Actor}
		for _, day := range expected.Days() {
			for _, a := range actions {
				if a.Day != day {
					continue
				}
				e, ok := expected[day][a.MemberID]
				if !ok || containsEntry(res.Entries, day, a.MemberID) {
					continue
				}
				res.Entries = append(res.Entries, EntryResult{PlanID: planID, Day: day, MemberID: a.MemberID, Entry: e})
			}
		}
		return out.Result(res, func(w io.Writer) {
			fmt.Fprintf(w, "Applied %d edits to plan %s as %s\n", len(actions), planID, batch.Actor)
			for _, r := range res.Entries {
				r.writeText(w)
			}
		})
	})
}

func containsEntry(entries []EntryResult, day plan.DayKey, memberID string) bool {
	for _, e := range entries {
		if e.Day == day && e.MemberID == memberID {
			return true
		}
	}
	return false
}

type memberAction struct {
	name  string
	short string
	edit  func() plan.Edit
	call  func(ctx context.Context, m *mutator.Mutator, actor, planID string, day plan.DayKey, memberID string) (plan.MemberOrderEntry, error)
}

var (
	memberDisallow = memberAction{
		name:  "disallow",
		short: "Bar a member from ordering on a day",
		call: func(ctx context.Context, m *mutator.Mutator, actor, planID string, day plan.DayKey, memberID string) (plan.MemberOrderEntry, error) {
			return m.DisallowMember(ctx, actor, planID, day, memberID)
		},
	}
	memberRestore = memberAction{
		name:  "restore",
		short: "Undo disallow or decline for a member on a day",
		call: func(ctx context.Context, m *mutator.Mutator, actor, planID string, day plan.DayKey, memberID string) (plan.MemberOrderEntry, error) {
			return m.RestoreMember(ctx, actor, planID, day, memberID)
		},
	}
	memberDecline = memberAction{
		name:  "decline",
		short: "Record that a member is not joining a day",
		edit:  plan.Decline,
	}
)

// newMemberCommand builds the disallow, restore and decline commands.
func newMemberCommand(rootOpts *RootOptions, action memberAction) *cobra.Command {
	var day, member, actor string

	cmd := &cobra.Command{
		Use:   action.name + " <plan-id>",
		Short: action.short,
		Example: fmt.Sprintf("  mealplan %s plan-1 --day 2024-03-04 --member alice --actor booker-1",
			action.name),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planID := args[0]
			if actor == "" {
				actor = member
			}
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				key, err := resolveDay(ctx, rt, planID, day)
				if err != nil {
					return err
				}
				var entry plan.MemberOrderEntry
				if action.call != nil {
					entry, err = action.call(ctx, rt.Mutator, actor, planID, key, member)
				} else {
					entry, err = rt.Mutator.SubmitMemberEdit(ctx, actor, planID, key, member, action.edit())
				}
				if err != nil {
					return err
				}
				res := EntryResult{PlanID: planID, Day: key, MemberID: member, Entry: entry}
				return out.Result(res, res.writeText)
			})
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day as YYYY-MM-DD or day key (required)")
	cmd.Flags().StringVar(&member, "member", "", "member id (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "acting user (defaults to the member)")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("member")

	return cmd
}
