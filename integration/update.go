package integration

import (
	"context"
	"fmt"
	"strings"
)

// IssueUpdate describes an update-issue call: optional field edits followed
// by an optional status change.
type IssueUpdate struct {
	Edit   IssueEdit
	Status string
}

// IssueUpdateResult reports what UpdateIssue actually changed.
type IssueUpdateResult struct {
	Key           string       `json:"key"`
	FieldsUpdated bool         `json:"fieldsUpdated"`
	StatusApplied bool         `json:"statusApplied"`
	Status        string       `json:"status,omitempty"`
	Available     []Transition `json:"availableTransitions,omitempty"`
	// Warning is set when a requested status change was skipped.
	Warning string `json:"warning,omitempty"`
}

// UpdateIssue applies field edits first and then, if a status was requested,
// moves the issue through the transition whose target status (or, failing
// that, transition name) matches case-insensitively.
//
// A status with no matching transition does not fail the call: the field
// edits stand, StatusApplied is false and Warning lists the transitions that
// were available.
func UpdateIssue(ctx context.Context, tracker IssueTrackerAdapter, key string, upd IssueUpdate) (*IssueUpdateResult, error) {
	res := &IssueUpdateResult{Key: key}

	if !upd.Edit.Empty() {
		if err := tracker.EditIssue(ctx, key, upd.Edit); err != nil {
			return nil, err
		}
		res.FieldsUpdated = true
	}

	status := strings.TrimSpace(upd.Status)
	if status == "" {
		return res, nil
	}

	transitions, err := tracker.ListTransitions(ctx, key)
	if err != nil {
		return nil, err
	}

	t, ok := MatchTransition(transitions, status)
	if !ok {
		res.Available = transitions
		res.Warning = fmt.Sprintf("status %q is not reachable from the current state of %s; available transitions: %s",
			status, key, describeTransitions(transitions))
		return res, nil
	}

	if err := tracker.TransitionIssue(ctx, key, t.ID); err != nil {
		return nil, err
	}
	res.StatusApplied = true
	res.Status = t.To
	if res.Status == "" {
		res.Status = t.Name
	}
	return res, nil
}

// MatchTransition finds the transition leading to status. Target status
// names take precedence over transition names.
func MatchTransition(transitions []Transition, status string) (Transition, bool) {
	for _, t := range transitions {
		if t.To != "" && strings.EqualFold(t.To, status) {
			return t, true
		}
	}
	for _, t := range transitions {
		if strings.EqualFold(t.Name, status) {
			return t, true
		}
	}
	return Transition{}, false
}

func describeTransitions(ts []Transition) string {
	if len(ts) == 0 {
		return "none"
	}
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		if t.To != "" && !strings.EqualFold(t.To, t.Name) {
			names = append(names, fmt.Sprintf("%s (-> %s)", t.Name, t.To))
		} else {
			names = append(names, t.Name)
		}
	}
	return strings.Join(names, ", ")
}
