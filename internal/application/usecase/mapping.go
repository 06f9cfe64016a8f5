package usecase

import (
	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func toLoanRequest(r dto.LoanRequest) (model.LoanRequest, error) {
	sector, err := valueobject.ParseSector(r.Sector)
	if err != nil {
		return model.LoanRequest{}, valueobject.NewValidationError("sector", err.Error())
	}
	channel, err := valueobject.ParseDisbursementChannel(r.Channel)
	if err != nil {
		return model.LoanRequest{}, valueobject.NewValidationError("channel", err.Error())
	}
	var crop valueobject.CropType
	if r.CropType != "" {
		if crop, err = valueobject.ParseCropType(r.CropType); err != nil {
			return model.LoanRequest{}, valueobject.NewValidationError("crop_type", err.Error())
		}
	}
	var season valueobject.Season
	if r.Season != "" {
		season = valueobject.ParseSeason(r.Season)
	}
	return model.LoanRequest{
		Amount:              r.Amount,
		TermMonths:          r.TermMonths,
		Sector:              sector,
		Purpose:             r.Purpose,
		CropType:            crop,
		Season:              season,
		Channel:             channel,
		ExpectedHarvestDate: r.ExpectedHarvestDate,
	}, nil
}

func toAssessmentResponse(a model.RiskAssessment) dto.AssessmentResponse {
	factors := make([]dto.FactorResponse, 0, len(a.Factors))
	for _, f := range a.Factors {
		factors = append(factors, dto.FactorResponse{
			Signal:       string(f.Signal),
			Value:        f.Value,
			Weight:       f.Weight,
			Contribution: f.Contribution,
		})
	}
	return dto.AssessmentResponse{
		BorrowerID:          a.BorrowerID,
		Score:               a.Score,
		Tier:                a.Tier.String(),
		Level:               a.Level.String(),
		RiskScore:           a.RiskScore,
		ApprovalProbability: a.ApprovalProbability,
		Confidence:          string(a.Confidence),
		IsFallback:          a.IsFallback,
		SubScores:           a.FactorBreakdown(),
		Factors:             factors,
		WeatherRisk:         a.WeatherRisk,
		ModelVersion:        a.ModelVersion,
		AssessedAt:          a.AssessedAt,
	}
}

func toTermsResponse(t model.LoanTerms) dto.TermsResponse {
	return dto.TermsResponse{
		AnnualRate:        t.AnnualRate,
		MaxAmount:         t.MaxAmount,
		ProcessingFee:     t.Fees.Processing,
		InsurancePremium:  t.Fees.InsurancePremium,
		Recommendation:    string(t.Recommendation),
		StabilityTier:     string(t.StabilityTier),
		InsuranceRequired: t.InsuranceRequired,
	}
}

func toScheduleResponse(s model.RepaymentSchedule) dto.ScheduleResponse {
	rows := make([]dto.InstallmentResponse, 0, len(s.Installments))
	for _, i := range s.Installments {
		rows = append(rows, dto.InstallmentResponse{
			Sequence:   i.Sequence,
			DueDate:    i.DueDate,
			Principal:  i.Principal,
			Interest:   i.Interest,
			AmountDue:  i.AmountDue,
			AmountPaid: i.AmountPaid,
			PaidAt:     i.PaidAt,
			Status:     i.Status.String(),
		})
	}
	return dto.ScheduleResponse{
		Principal:     s.Principal,
		AnnualRate:    s.AnnualRate,
		TotalInterest: s.TotalInterest,
		TotalDue:      s.TotalDue,
		Installments:  rows,
		HarvestLinked: s.HarvestLinked,
	}
}

func toLoanResponse(l model.Loan) dto.LoanResponse {
	resp := dto.LoanResponse{
		ID:             l.ID(),
		BorrowerID:     l.BorrowerID(),
		Status:         l.Status().String(),
		Amount:         l.Request().Amount,
		ApprovedAmount: l.ApprovedAmount(),
		Outstanding:    l.Outstanding(),
		TermMonths:     l.Request().TermMonths,
		Version:        l.Version(),
		CreatedAt:      l.CreatedAt(),
		UpdatedAt:      l.UpdatedAt(),
	}
	if a := l.Assessment(); a != nil {
		v := toAssessmentResponse(*a)
		resp.Assessment = &v
	}
	if t := l.Terms(); t != nil {
		v := toTermsResponse(*t)
		resp.Terms = &v
	}
	if s := l.Schedule(); s != nil {
		v := toScheduleResponse(*s)
		resp.Schedule = &v
	}
	return resp
}

func toCreditScoreResponse(r model.CreditScoreRecord) dto.CreditScoreResponse {
	history := r.History()
	entries := make([]dto.ScoreHistoryEntry, 0, len(history))
	for _, h := range history {
		entries = append(entries, dto.ScoreHistoryEntry{
			At:            h.At,
			Score:         h.Score,
			Delta:         h.Delta,
			Tier:          h.Tier.String(),
			Reason:        string(h.Reason),
			SourceEventID: h.SourceEventID,
			IsFallback:    h.IsFallback,
		})
	}
	return dto.CreditScoreResponse{
		BorrowerID: r.BorrowerID(),
		Score:      r.Score(),
		Tier:       r.Tier().String(),
		Factors:    r.Factors(),
		History:    entries,
		IsFallback: r.IsFallback(),
		Version:    r.Version(),
		UpdatedAt:  r.UpdatedAt(),
	}
}
