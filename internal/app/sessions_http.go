package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/export"
	"github.com/Spok95/drillcert/internal/models"
)

type sheetRequest struct {
	ExpectedVersion *int64 `json:"expected_version,omitempty" validate:"omitempty,gt=0"`
}

type scoreRequest struct {
	Score           *int    `json:"score" validate:"required"`
	Comment         *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	ExpectedVersion *int64  `json:"expected_version,omitempty" validate:"omitempty,gt=0"`
}

type feedbackRequest struct {
	Feedback        *string `json:"feedback" validate:"omitempty,max=5000"`
	ExpectedVersion *int64  `json:"expected_version,omitempty" validate:"omitempty,gt=0"`
}

func (s *server) openSession(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.engine.OpenSession(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "session opened", sess)
}

func (s *server) getSessionByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.engine.GetSessionByEvent(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", sess)
}

func (s *server) eligible(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.engine.EligibleParticipants(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", rows)
}

type transitionFunc func(ctx context.Context, sessionID int64) (models.ScoringSession, error)

func (s *server) transition(w http.ResponseWriter, r *http.Request, step transitionFunc, msg string) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := step(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, msg, sess)
}

func (s *server) completeSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Complete, "session completed")
}

func (s *server) reopenSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Reopen, "session reopened")
}

func (s *server) lockSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Lock, "session locked")
}

// sessionSummary отдаёт JSON или, с ?format=xlsx, книгу со сводкой и списком участников.
func (s *server) sessionSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.engine.SessionSummary(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !wantsXLSX(r) {
		ok(w, http.StatusOK, "", sum)
		return
	}
	participants, err := s.engine.EligibleParticipants(r.Context(), sum.EventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wb, err := export.SessionSummary(sum, participants)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeWorkbook(w, r, wb, export.BuildSummaryFilename(sum.EventTitle, time.Now().In(s.loc)))
}

// sheet — адрес листа из пути и тела запроса.
func sheet(r *http.Request, expected *int64) (engine.SheetRef, error) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		return engine.SheetRef{}, err
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		return engine.SheetRef{}, err
	}
	return engine.SheetRef{SessionID: sessionID, UserID: userID, ExpectedVersion: expected}, nil
}

func (s *server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	ref, err := sheet(r, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.engine.GetEvaluation(r.Context(), ref.SessionID, ref.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", ev)
}

func (s *server) recordScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := sheet(r, req.ExpectedVersion)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.engine.RecordScore(r.Context(), engine.ScoreInput{
		SheetRef:  ref,
		Criterion: strings.TrimSpace(r.PathValue("criterion")),
		Score:     *req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "score recorded", ev)
}

func (s *server) setFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := sheet(r, req.ExpectedVersion)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.engine.SetFeedback(r.Context(), ref, req.Feedback)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "feedback saved", ev)
}

func (s *server) submit(w http.ResponseWriter, r *http.Request) {
	s.sheetAction(w, r, s.engine.Submit, "evaluation submitted")
}

func (s *server) approve(w http.ResponseWriter, r *http.Request) {
	s.sheetAction(w, r, s.engine.Approve, "evaluation approved")
}

func (s *server) sheetAction(w http.ResponseWriter, r *http.Request, action func(context.Context, engine.SheetRef) (engine.SubmitResult, error), msg string) {
	var req sheetRequest
	if err := s.decode(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := sheet(r, req.ExpectedVersion)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := action(r.Context(), ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, msg, res)
}
