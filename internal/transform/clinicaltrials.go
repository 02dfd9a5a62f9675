package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"go-medsearch-proxy/internal/models"
)

// ClinicalTrialsProvider is the provider name reported in responses
const ClinicalTrialsProvider = "clinicaltrials.gov"

// StudyURLPrefix is the public study page prefix
const StudyURLPrefix = "https://clinicaltrials.gov/study/"

const maxTrialLocations = 10

// Raw ClinicalTrials.gov v2 /studies response. Every nested module is
// optional upstream, so each one is a pointer.
type ctStudiesResponse struct {
	Studies       []ctStudy `json:"studies"`
	TotalCount    *int      `json:"totalCount"`
	NextPageToken *string   `json:"nextPageToken"`
}

type ctStudy struct {
	ProtocolSection *ctProtocolSection `json:"protocolSection"`
}

type ctProtocolSection struct {
	Identification    *ctIdentificationModule    `json:"identificationModule"`
	Status            *ctStatusModule            `json:"statusModule"`
	Design            *ctDesignModule            `json:"designModule"`
	Conditions        *ctConditionsModule        `json:"conditionsModule"`
	Sponsor           *ctSponsorModule           `json:"sponsorCollaboratorsModule"`
	Description       *ctDescriptionModule       `json:"descriptionModule"`
	ContactsLocations *ctContactsLocationsModule `json:"contactsLocationsModule"`
}

type ctIdentificationModule struct {
	NCTID         *string `json:"nctId"`
	BriefTitle    *string `json:"briefTitle"`
	OfficialTitle *string `json:"officialTitle"`
}

type ctDateStruct struct {
	Date *string `json:"date"`
}

type ctStatusModule struct {
	OverallStatus         *string       `json:"overallStatus"`
	StartDate             *ctDateStruct `json:"startDateStruct"`
	CompletionDate        *ctDateStruct `json:"completionDateStruct"`
	PrimaryCompletionDate *ctDateStruct `json:"primaryCompletionDateStruct"`
}

type ctDesignModule struct {
	StudyType      *string           `json:"studyType"`
	Phases         []string          `json:"phases"`
	EnrollmentInfo *ctEnrollmentInfo `json:"enrollmentInfo"`
}

type ctEnrollmentInfo struct {
	Count *int `json:"count"`
}

type ctConditionsModule struct {
	Conditions []string `json:"conditions"`
}

type ctSponsorModule struct {
	LeadSponsor *struct {
		Name *string `json:"name"`
	} `json:"leadSponsor"`
}

type ctDescriptionModule struct {
	BriefSummary *string `json:"briefSummary"`
}

type ctContactsLocationsModule struct {
	Locations []struct {
		Facility *string `json:"facility"`
		City     *string `json:"city"`
		Country  *string `json:"country"`
	} `json:"locations"`
}

// ClinicalTrials reshapes a ClinicalTrials.gov v2 studies response. Missing
// upstream fields produce omitted output fields; only malformed JSON is an
// error.
func ClinicalTrials(body []byte, query string) (*models.SearchResponse[models.Trial], error) {
	var raw ctStudiesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode ClinicalTrials.gov response: %w", err)
	}

	trials := make([]models.Trial, 0, len(raw.Studies))
	for _, study := range raw.Studies {
		if study.ProtocolSection == nil {
			continue
		}
		trials = append(trials, trialFromProtocol(study.ProtocolSection))
	}

	total := len(trials)
	if raw.TotalCount != nil {
		total = *raw.TotalCount
	}
	next := str(raw.NextPageToken)

	return &models.SearchResponse[models.Trial]{
		Results:              trials,
		TotalCount:           total,
		Query:                query,
		Provider:             ClinicalTrialsProvider,
		NextPageToken:        next,
		MoreResultsAvailable: next != "",
	}, nil
}

func trialFromProtocol(p *ctProtocolSection) models.Trial {
	trial := models.Trial{
		Phases:     []string{},
		Conditions: []string{},
		Locations:  []models.Location{},
	}

	if id := p.Identification; id != nil {
		trial.NCTID = str(id.NCTID)
		trial.Title = str(id.BriefTitle)
		trial.OfficialTitle = str(id.OfficialTitle)
	}
	if trial.Title == "" {
		trial.Title = trial.OfficialTitle
	}
	if trial.NCTID != "" {
		trial.URL = StudyURLPrefix + trial.NCTID
	}

	if s := p.Status; s != nil {
		trial.Status = str(s.OverallStatus)
		trial.StartDate = date(s.StartDate)
		trial.CompletionDate = date(s.CompletionDate)
		if trial.CompletionDate == "" {
			trial.CompletionDate = date(s.PrimaryCompletionDate)
		}
		trial.Duration = TrialDuration(trial.StartDate, trial.CompletionDate)
	}

	if d := p.Design; d != nil {
		trial.StudyType = str(d.StudyType)
		if len(d.Phases) > 0 {
			trial.Phases = d.Phases
		}
		if d.EnrollmentInfo != nil && d.EnrollmentInfo.Count != nil {
			count := *d.EnrollmentInfo.Count
			category := EnrollmentCategory(count)
			trial.Enrollment = &count
			trial.EnrollmentCategory = &category
		}
	}

	if c := p.Conditions; c != nil && len(c.Conditions) > 0 {
		trial.Conditions = c.Conditions
	}

	if sp := p.Sponsor; sp != nil && sp.LeadSponsor != nil {
		trial.Sponsor = str(sp.LeadSponsor.Name)
	}

	if desc := p.Description; desc != nil {
		trial.Summary = strings.TrimSpace(str(desc.BriefSummary))
	}

	if cl := p.ContactsLocations; cl != nil {
		for _, loc := range cl.Locations {
			if len(trial.Locations) == maxTrialLocations {
				break
			}
			trial.Locations = append(trial.Locations, models.Location{
				Facility: str(loc.Facility),
				City:     str(loc.City),
				Country:  str(loc.Country),
			})
		}
	}

	return trial
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func date(d *ctDateStruct) string {
	if d == nil {
		return ""
	}
	return str(d.Date)
}
