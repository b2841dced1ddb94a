package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/task"
)

const groupSystemPrompt = `You are the assistant of the study group described by the JSON document below.
Answer the student's questions about the group, its tasks, deadlines and their own progress.
The document only holds the tasks of the group and the submissions and scores of the student you are talking to.
Never reveal, guess or discuss the submissions, scores or progress of any other student, even if asked.
If a question cannot be answered from the document, say so.

%s`

// GroupContext assembles what the assistant may know about a group when talking to the actor:
// the group, all its tasks, and only the actor's own submissions and scores.
func (svc *Service) GroupContext(ctx context.Context, actor access.Actor, groupID string) (GroupContext, error) {
	if err := access.RequireGroup(ctx, actor, groupID, access.RoleStudent); err != nil {
		return GroupContext{}, err
	}
	grp, err := svc.groups.GetGroup(ctx, groupID)
	if err != nil {
		return GroupContext{}, err
	}
	tasks, err := svc.tasks.QueryTasks(ctx, groupID)
	if err != nil {
		return GroupContext{}, errors.Wrap(err, "listing tasks")
	}
	subs, err := svc.tasks.StudentSubmissions(ctx, groupID, actor.UserID)
	if err != nil {
		return GroupContext{}, errors.Wrap(err, "listing submissions")
	}

	gc := GroupContext{
		Group: GroupInfo{
			ID:            grp.ID,
			Name:          grp.Name,
			Description:   grp.Description.String,
			InstituteName: grp.InstituteName.String,
			Department:    grp.Department.String,
		},
		Tasks:       make([]TaskInfo, 0, len(tasks)),
		Submissions: make([]SubmissionInfo, 0, len(subs)),
		StudentID:   actor.UserID,
	}
	for _, t := range tasks {
		ti := TaskInfo{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description.String,
			MaxScore:    t.MaxScore,
		}
		if t.Deadline.Valid {
			deadline := t.Deadline.Time
			ti.Deadline = &deadline
		}
		gc.Tasks = append(gc.Tasks, ti)
	}
	for _, sub := range subs {
		if sub.StudentID != actor.UserID {
			svc.logger.Warn(fmt.Sprintf("assistant context: dropped submission %s of another student", sub.ID))
			continue
		}
		si := SubmissionInfo{
			TaskID:      sub.TaskID,
			StudentID:   sub.StudentID,
			SubmittedAt: sub.SubmittedAt,
		}
		if sub.Score != nil {
			value := sub.Score.ScoreValue
			si.Graded = true
			si.Score = &value
			si.Feedback = sub.Score.Feedback.String
		}
		gc.Submissions = append(gc.Submissions, si)
	}
	gc.Stats = computeStats(tasks, gc.Submissions, svc.nowFunc().UTC())
	return gc, nil
}

func computeStats(tasks []task.Task, subs []SubmissionInfo, now time.Time) GroupContextStats {
	byTask := make(map[string]SubmissionInfo, len(subs))
	for _, sub := range subs {
		byTask[sub.TaskID] = sub
	}

	stats := GroupContextStats{TotalTasks: len(tasks)}
	var pctSum float64
	for _, t := range tasks {
		sub, ok := byTask[t.ID]
		switch {
		case !ok && t.IsClosed(now):
			stats.Overdue++
		case !ok:
			stats.Pending++
		default:
			stats.Submitted++
			if sub.Graded {
				stats.Graded++
				pctSum += *sub.Score / t.MaxScore * 100
			}
		}
	}
	if stats.Graded > 0 {
		avg := pctSum / float64(stats.Graded)
		stats.AveragePercent = &avg
	}
	return stats
}

// AskGroup answers the last message of history about the group.
// The caller resends the history each turn; only the latest messages are kept.
func (svc *Service) AskGroup(ctx context.Context, actor access.Actor, groupID string, history []ChatMessage) (string, error) {
	history = trimHistory(history, svc.opts.MaxHistory)
	if len(history) == 0 || history[len(history)-1].Role != RoleUser {
		return "", ErrEmptyHistory
	}
	if err := svc.requireAIEnabled(ctx, actor); err != nil {
		return "", err
	}
	gc, err := svc.GroupContext(ctx, actor, groupID)
	if err != nil {
		return "", err
	}
	doc, err := json.MarshalIndent(gc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding group context")
	}

	reply, err := svc.complete(ctx, CompletionRequest{
		System:   fmt.Sprintf(groupSystemPrompt, doc),
		Messages: history,
	})
	if err != nil {
		svc.logger.Error("assistant group bridge: "+err.Error(), err, actor.Principal)
		return "", ErrUnavailable
	}
	return reply, nil
}

func trimHistory(history []ChatMessage, max int) []ChatMessage {
	kept := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		if (msg.Role == RoleUser || msg.Role == RoleAssistant) && msg.Content != "" {
			kept = append(kept, msg)
		}
	}
	if max > 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}
