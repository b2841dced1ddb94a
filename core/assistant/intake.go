package assistant

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/group"
)

// intake questions, asked in order; the index is used to fill the creation request
const (
	qGroupName = iota
	qPurpose
	qInstitute
	qDepartment
	qMembers
)

var intakeQuestions = [...]string{
	qGroupName:  "What would you like to name your group?",
	qPurpose:    "What is the purpose of the group, and what will its members do together?",
	qInstitute:  "Which institute or school is the group part of?",
	qDepartment: "Which department or faculty does it belong to?",
	qMembers:    "Who are the intended members, and how many do you expect?",
}

var _ group.IntakeReader = (*Service)(nil)

// IntakeLength is the number of questions of the intake.
const IntakeLength = len(intakeQuestions)

const summarySystemPrompt = "You help a super admin review requests to create study groups. " +
	"Summarize the applicant's answers below in one short paragraph (at most 80 words), " +
	"in the third person, without adding information they did not give."

// StartIntake opens a new intake conversation and returns its first question.
func (svc *Service) StartIntake(ctx context.Context, actor access.Actor) (IntakeStep, error) {
	now := svc.nowFunc().UTC()
	sess, err := svc.sessions.CreateSession(ctx, Session{
		UserID:      actor.UserID,
		CurrentStep: 1,
		Answers:     core.Transcript{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return IntakeStep{}, errors.Wrap(err, "creating session")
	}
	return stepOf(sess), nil
}

func stepOf(sess Session) IntakeStep {
	step := IntakeStep{Session: sess, Step: sess.CurrentStep, Total: IntakeLength}
	if sess.IsCompleted {
		step.Summary = sess.Summary.String
	} else {
		step.Question = intakeQuestions[sess.CurrentStep-1]
	}
	return step
}

func (svc *Service) getOwnSession(ctx context.Context, actor access.Actor, id string) (Session, error) {
	sess, err := svc.sessions.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != actor.UserID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (svc *Service) GetIntake(ctx context.Context, actor access.Actor, sessionID string) (IntakeStep, error) {
	sess, err := svc.getOwnSession(ctx, actor, sessionID)
	if err != nil {
		return IntakeStep{}, err
	}
	return stepOf(sess), nil
}

// AnswerIntake records the answer to the current question and moves to the next one.
// The last answer completes the session with a summary: generated if the provider answers,
// the concatenated answers otherwise.
func (svc *Service) AnswerIntake(ctx context.Context, actor access.Actor, sessionID, answer string) (IntakeStep, error) {
	answer = core.CleanString(answer)
	if answer == "" {
		return IntakeStep{}, core.NewValidationError(nil, core.FieldError{
			Field: "answer",
			Error: "this field cannot be blank",
		})
	}
	sess, err := svc.getOwnSession(ctx, actor, sessionID)
	if err != nil {
		return IntakeStep{}, err
	}
	if sess.IsCompleted {
		return IntakeStep{}, ErrSessionCompleted
	}

	expected := sess.CurrentStep
	answers := make(core.Transcript, 0, expected)
	answers = append(answers, sess.Answers...)
	sess.Answers = append(answers, core.QAPair{Question: intakeQuestions[expected-1], Answer: answer})

	if expected < IntakeLength {
		sess.CurrentStep++
	} else {
		sess.IsCompleted = true
		sess.Summary = null.StringFrom(svc.summarize(ctx, actor, sess.Answers))
	}
	sess.UpdatedAt = svc.nowFunc().UTC()

	if sess, err = svc.sessions.AdvanceSession(ctx, sess, expected); err != nil {
		if errors.Cause(err) == ErrStaleSession {
			return IntakeStep{}, ErrStaleSession
		}
		return IntakeStep{}, errors.Wrap(err, "saving session")
	}
	return stepOf(sess), nil
}

// summarize never fails: the concatenated answers stand in for the generated summary.
func (svc *Service) summarize(ctx context.Context, actor access.Actor, answers core.Transcript) string {
	fallback := answers.String()
	if err := svc.requireAIEnabled(ctx, actor); err != nil {
		return fallback
	}
	summary, err := svc.complete(ctx, CompletionRequest{
		System:   summarySystemPrompt,
		Messages: []ChatMessage{{Role: RoleUser, Content: fallback}},
	})
	if err != nil {
		svc.logger.Warn("intake summary fell back to the raw answers: "+err.Error(), err, actor.Principal)
		return fallback
	}
	return summary
}

// CompletedIntake returns what a completed session collected, for a group creation request.
func (svc *Service) CompletedIntake(ctx context.Context, sessionID, userID string) (group.Intake, error) {
	sess, err := svc.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return group.Intake{}, err
	}
	if sess.UserID != userID {
		return group.Intake{}, ErrSessionNotFound
	}
	if !sess.IsCompleted {
		return group.Intake{}, ErrIntakeNotCompleted
	}

	answer := func(idx int) string {
		if idx < len(sess.Answers) {
			return strings.TrimSpace(sess.Answers[idx].Answer)
		}
		return ""
	}
	return group.Intake{
		Transcript:    sess.Answers,
		Summary:       sess.Summary.String,
		GroupName:     answer(qGroupName),
		Description:   answer(qPurpose),
		InstituteName: answer(qInstitute),
		Department:    answer(qDepartment),
	}, nil
}
