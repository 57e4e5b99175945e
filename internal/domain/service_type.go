package domain

import (
	"fmt"
	"time"
)

type ServiceType string

const (
	ServiceTypePhysicalTherapy        ServiceType = "PHYSICAL_THERAPY"
	ServiceTypeOccupationalTherapy    ServiceType = "OCCUPATIONAL_THERAPY"
	ServiceTypeSpeechTherapy          ServiceType = "SPEECH_THERAPY"
	ServiceTypeBehavioralTherapy      ServiceType = "BEHAVIORAL_THERAPY"
	ServiceTypeMentalHealthCounseling ServiceType = "MENTAL_HEALTH_COUNSELING"
	ServiceTypeNursingVisit           ServiceType = "NURSING_VISIT"
	ServiceTypePersonalCare           ServiceType = "PERSONAL_CARE"
	ServiceTypeCaseManagement         ServiceType = "CASE_MANAGEMENT"
)

// ServiceTypes lists every known service type in declaration order.
func ServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceTypePhysicalTherapy,
		ServiceTypeOccupationalTherapy,
		ServiceTypeSpeechTherapy,
		ServiceTypeBehavioralTherapy,
		ServiceTypeMentalHealthCounseling,
		ServiceTypeNursingVisit,
		ServiceTypePersonalCare,
		ServiceTypeCaseManagement,
	}
}

// DefaultDuration is the length of one bookable slot. It returns 0 for
// unknown values; Valid reports those.
func (s ServiceType) DefaultDuration() time.Duration {
	switch s {
	case ServiceTypePhysicalTherapy:
		return 60 * time.Minute
	case ServiceTypeOccupationalTherapy:
		return 60 * time.Minute
	case ServiceTypeSpeechTherapy:
		return 45 * time.Minute
	case ServiceTypeBehavioralTherapy:
		return 60 * time.Minute
	case ServiceTypeMentalHealthCounseling:
		return 50 * time.Minute
	case ServiceTypeNursingVisit:
		return 30 * time.Minute
	case ServiceTypePersonalCare:
		return 120 * time.Minute
	case ServiceTypeCaseManagement:
		return 30 * time.Minute
	default:
		return 0
	}
}

func (s ServiceType) Valid() bool {
	return s.DefaultDuration() > 0
}

func ParseServiceType(text string) (ServiceType, error) {
	st := ServiceType(text)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceType, text)
	}
	return st, nil
}

func (s *ServiceType) UnmarshalText(data []byte) error {
	st, err := ParseServiceType(string(data))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
