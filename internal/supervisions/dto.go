package supervisions

import "time"

// Supervision creation request. Dates travel as "2006-01-02" strings.
type CreateSupervisionRequest struct {
	ResearcherCode string `json:"researcher_code" binding:"required"`
	StudentCode    string `json:"student_code" binding:"required"`
	Theme          string `json:"theme" binding:"required"`
	StartedOn      string `json:"started_on" binding:"required"`
}

type CloseSupervisionRequest struct {
	ResearcherCode string `json:"researcher_code" binding:"required"`
	StudentCode    string `json:"student_code" binding:"required"`
	EndedOn        string `json:"ended_on" binding:"required"`
}

type ReopenSupervisionRequest struct {
	ResearcherCode string `json:"researcher_code" binding:"required"`
	StudentCode    string `json:"student_code" binding:"required"`
}

type UpdateThemeRequest struct {
	ResearcherCode string `json:"researcher_code" binding:"required"`
	StudentCode    string `json:"student_code" binding:"required"`
	Theme          string `json:"theme" binding:"required"`
}

type SupervisionResponse struct {
	SupervisionID   int64      `json:"supervision_id"`
	SupervisionULID string     `json:"supervision_ulid"`
	ResearcherCode  string     `json:"researcher_code"`
	StudentCode     string     `json:"student_code"`
	Theme           string     `json:"theme"`
	StartedOn       time.Time  `json:"started_on"`
	EndedOn         *time.Time `json:"ended_on,omitempty"`
	Open            bool       `json:"open"`
}

func buildSupervisionResponse(s *Supervision) SupervisionResponse {
	resp := SupervisionResponse{
		SupervisionID:   s.SupervisionID,
		SupervisionULID: s.SupervisionULID,
		ResearcherCode:  s.ResearcherCode,
		StudentCode:     s.StudentCode,
		Theme:           s.Theme,
		StartedOn:       s.StartedOn,
		Open:            s.Open(),
	}
	if s.EndedOn.Valid {
		val := s.EndedOn.Time
		resp.EndedOn = &val
	}
	return resp
}
