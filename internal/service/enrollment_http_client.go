package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EnrollmentClient is the roster collaborator.
type EnrollmentClient interface {
	CourseStudents(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	StudentCourses(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)
}

type EnrollmentHTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewEnrollmentHTTPClient(baseURL string, httpClient *http.Client) *EnrollmentHTTPClient {
	return &EnrollmentHTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type courseStudentsResponse struct {
	StudentIDs []uuid.UUID `json:"student_ids"`
}

type studentCoursesResponse struct {
	CourseIDs []uuid.UUID `json:"course_ids"`
}

func (c *EnrollmentHTTPClient) CourseStudents(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var body courseStudentsResponse
	if err := c.get(ctx, "/courses/"+courseID.String()+"/students", &body); err != nil {
		return nil, errors.Wrapf(err, "roster for course %s", courseID)
	}
	return distinctIDs(body.StudentIDs), nil
}

func (c *EnrollmentHTTPClient) StudentCourses(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	var body studentCoursesResponse
	if err := c.get(ctx, "/students/"+studentID.String()+"/courses", &body); err != nil {
		return nil, errors.Wrapf(err, "courses for student %s", studentID)
	}
	return distinctIDs(body.CourseIDs), nil
}

// get treats 404 as an empty membership set.
func (c *EnrollmentHTTPClient) get(ctx context.Context, path string, into any) error {
	if c.baseURL == "" {
		return ErrInvalidInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("enrollment service unexpected status: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(into)
}

func distinctIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
