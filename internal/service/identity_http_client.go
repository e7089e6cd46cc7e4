package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"service-schedule/internal/domain"
)

type IdentityClient interface {
	GetMe(ctx context.Context, userID uuid.UUID) (IdentityUser, error)
}

type IdentityUser struct {
	ID    uuid.UUID
	Roles []string
}

type IdentityHTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewIdentityHTTPClient(baseURL string, httpClient *http.Client) *IdentityHTTPClient {
	return &IdentityHTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type identityMeResponse struct {
	User  identityUser   `json:"user"`
	Roles []identityRole `json:"roles"`
}

type identityUser struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
}

type identityRole struct {
	Name string `json:"name"`
}

func (c *IdentityHTTPClient) GetMe(ctx context.Context, userID uuid.UUID) (IdentityUser, error) {
	if c.baseURL == "" {
		return IdentityUser{}, ErrInvalidInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return IdentityUser{}, err
	}
	req.Header.Set("X-User-ID", userID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return IdentityUser{}, errors.Wrap(err, "identity request")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return IdentityUser{}, ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return IdentityUser{}, ErrUnauthorized
	default:
		return IdentityUser{}, fmt.Errorf("identity service unexpected status: %d", resp.StatusCode)
	}

	var body identityMeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return IdentityUser{}, errors.Wrap(err, "decode identity response")
	}

	if body.User.ID == uuid.Nil {
		return IdentityUser{}, errors.New("identity response missing id")
	}

	roles := make([]string, 0, len(body.Roles))
	for _, role := range body.Roles {
		roles = append(roles, role.Name)
	}

	return IdentityUser{ID: body.User.ID, Roles: roles}, nil
}

func DefaultIdentityHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

// ResolveViewer turns an identity lookup into the viewer the engine works
// with. Role precedence is administrator, instructor, student; a user holding
// none of them is unauthorized.
func ResolveViewer(ctx context.Context, identity IdentityClient, userID uuid.UUID) (domain.Viewer, error) {
	user, err := identity.GetMe(ctx, userID)
	if err != nil {
		return domain.Viewer{}, err
	}

	best := domain.Role("")
	for _, name := range user.Roles {
		role, ok := roleFromName(name)
		if !ok {
			continue
		}
		if best == "" || rolePriority(role) < rolePriority(best) {
			best = role
		}
	}
	if best == "" {
		return domain.Viewer{}, ErrUnauthorized
	}
	return domain.Viewer{ID: user.ID, Role: best}, nil
}

func roleFromName(name string) (domain.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin", "administrator":
		return domain.RoleAdministrator, true
	case "instructor", "faculty", "teacher":
		return domain.RoleInstructor, true
	case "student":
		return domain.RoleStudent, true
	default:
		return "", false
	}
}

func rolePriority(role domain.Role) int {
	switch role {
	case domain.RoleAdministrator:
		return 0
	case domain.RoleInstructor:
		return 1
	default:
		return 2
	}
}
