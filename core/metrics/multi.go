package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []PlanSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...PlanSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks and joins their errors.
func (m *MultiSink) RecordPlan(rec PlanRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordPlan(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordRakes forwards rake records to the sinks supporting them.
func (m *MultiSink) RecordRakes(recs []RakeRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rr, ok := s.(RakeRecorder); ok {
			if err := rr.RecordRakes(recs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordRelease forwards release records to the sinks supporting them.
func (m *MultiSink) RecordRelease(rec ReleaseRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rr, ok := s.(ReleaseRecorder); ok {
			if err := rr.RecordRelease(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordStage forwards stage records to the sinks supporting them.
func (m *MultiSink) RecordStage(rec StageRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if sr, ok := s.(StageRecorder); ok {
			if err := sr.RecordStage(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
