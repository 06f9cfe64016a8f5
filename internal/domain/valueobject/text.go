package valueobject

// Text marshalling lets the struct-backed enums travel through JSON and
// JSONB columns as their string values. An empty string decodes to the
// zero value.

func (t RiskTier) MarshalText() ([]byte, error) { return []byte(t.value), nil }

func (t *RiskTier) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = RiskTier{}
		return nil
	}
	v, err := NewRiskTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (l RiskLevel) MarshalText() ([]byte, error) { return []byte(l.value), nil }

func (l *RiskLevel) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*l = RiskLevel{}
		return nil
	}
	v, err := NewRiskLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (s LoanStatus) MarshalText() ([]byte, error) { return []byte(s.value), nil }

func (s *LoanStatus) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = LoanStatus{}
		return nil
	}
	v, err := NewLoanStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s InstallmentStatus) MarshalText() ([]byte, error) { return []byte(s.value), nil }

func (s *InstallmentStatus) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = InstallmentStatus{}
		return nil
	}
	v, err := NewInstallmentStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
