package jobs

import (
	"context"
	"fmt"

	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
)

// StatsSource — источник сводки по сертификатам (engine.Service).
type StatsSource interface {
	CertificateStats(ctx context.Context) (models.CertificateStats, error)
}

// RefreshCertificationGauges обновляет гейджи certified_total и pending_certifications.
func RefreshCertificationGauges(src StatsSource) Job {
	return func(ctx context.Context) error {
		st, err := src.CertificateStats(ctx)
		if err != nil {
			return fmt.Errorf("certificate stats: %w", err)
		}
		metrics.CertifiedTotal.Set(float64(st.TotalCertified))
		metrics.PendingCertifications.Set(float64(st.PendingCertifications))
		return nil
	}
}
