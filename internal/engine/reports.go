package engine

import (
	"context"
	"errors"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/eligibility"
	"github.com/Spok95/drillcert/internal/models"
)

// EligibleParticipants — очередь ручной выдачи и список допущенных по мероприятию.
// Решение пересчитывается на лету с текущими настройками.
func (s *Service) EligibleParticipants(ctx context.Context, eventID int64) ([]models.EligibleParticipant, error) {
	event, err := db.GetEventContext(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	roster, err := db.EventRosterContext(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	stored, err := db.GetSettingsContext(ctx, s.db, &eventID)
	if err != nil {
		return nil, err
	}
	attendance, err := db.ListAttendanceContext(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	active, err := db.ActiveCertificatesByEventContext(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}

	byUser := map[int64]models.ParticipantEvaluation{}
	sess, err := db.GetSessionByEventContext(ctx, s.db, eventID)
	var nf *apperr.NotFoundError
	switch {
	case errors.As(err, &nf):
	case err != nil:
		return nil, err
	default:
		evs, err := db.ListEvaluationsContext(ctx, s.db, sess.ID)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			byUser[ev.UserID] = ev
		}
	}

	out := make([]models.EligibleParticipant, 0, len(roster))
	for _, u := range roster {
		in := eligibility.Input{Settings: stored.AutomationSettings}
		row := models.EligibleParticipant{
			User:             u,
			EventID:          event.ID,
			EventTitle:       event.Title,
			AttendanceStatus: models.AttendanceNotMarked,
		}
		if ev, ok := byUser[u.ID]; ok {
			in.Evaluation = &ev
			id := ev.ID
			row.EvaluationID = &id
			if ev.Status == models.EvaluationSubmitted {
				pct := ev.Percentage
				row.Score = &pct
				row.Result = ev.Result
			}
		}
		if a, ok := attendance[u.ID]; ok {
			in.Attendance = &a
			row.AttendanceStatus = a.Status
		}
		if c, ok := active[u.ID]; ok {
			in.ActiveCertificate = &c
			id := c.ID
			row.CertificateID = &id
			row.CertificateIssued = true
		}
		d := eligibility.Evaluate(in)
		row.CertStatus = d.Status
		row.Reason = string(d.Reason)
		out = append(out, row)
	}
	return out, nil
}

func (s *Service) SessionSummary(ctx context.Context, sessionID int64) (models.SessionSummary, error) {
	sess, err := db.GetSessionContext(ctx, s.db, sessionID)
	if err != nil {
		return models.SessionSummary{}, err
	}
	return db.SessionSummaryContext(ctx, s.db, sess)
}

func (s *Service) CertificateStats(ctx context.Context) (models.CertificateStats, error) {
	return db.CertificateStatsContext(ctx, s.db, s.now(), s.loc)
}
