package client

import (
	"context"
	"net/url"
)

const (
	teamsPath       = "/teams/teams/"
	invitationsPath = "/teams/team-invitations/"
)

// Team represents a team
type Team struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	MemberCount *int   `json:"member_count,omitempty"`
}

// TeamMembership is a user's membership in a team
type TeamMembership struct {
	ID                int64       `json:"id"`
	User              UserSummary `json:"user"`
	Team              int64       `json:"team"`
	Role              string      `json:"role"`
	JoinedAt          string      `json:"joined_at"`
	IsActive          bool        `json:"is_active"`
	PerformanceRating *float64    `json:"performance_rating"`
	TasksCompleted    int         `json:"tasks_completed"`
}

// TeamSummary is the compact team representation embedded in invitations
type TeamSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TeamInvitation is a pending or resolved invitation to join a team
type TeamInvitation struct {
	ID          int64       `json:"id"`
	Team        TeamSummary `json:"team"`
	InvitedUser UserSummary `json:"invited_user"`
	InvitedBy   UserSummary `json:"invited_by"`
	Role        string      `json:"role"`
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	ExpiresAt   string      `json:"expires_at"`
	CreatedAt   string      `json:"created_at"`
}

// TeamInput is the body for creating or patching a team
type TeamInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type inviteRequest struct {
	Team             int64  `json:"team"`
	InvitedUserEmail string `json:"invited_user_email"`
	Role             string `json:"role"`
}

// ListTeams lists the teams visible to the current user
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := c.list(ctx, teamsPath, nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetTeam fetches a single team
func (c *Client) GetTeam(ctx context.Context, id int64) (*Team, error) {
	var team Team
	if err := c.api.Get(ctx, resourcePath(teamsPath, id), nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// CreateTeam creates a team
func (c *Client) CreateTeam(ctx context.Context, input TeamInput) (*Team, error) {
	var team Team
	if err := c.api.Post(ctx, teamsPath, input, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// UpdateTeam patches a team
func (c *Client) UpdateTeam(ctx context.Context, id int64, input TeamInput) (*Team, error) {
	var team Team
	if err := c.api.Patch(ctx, resourcePath(teamsPath, id), input, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// DeleteTeam deletes a team
func (c *Client) DeleteTeam(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, resourcePath(teamsPath, id))
}

// ListTeamMembers returns the memberships listed on the team detail
func (c *Client) ListTeamMembers(ctx context.Context, teamID int64) ([]TeamMembership, error) {
	var d detail[TeamMembership]
	if err := c.api.Get(ctx, resourcePath(teamsPath, teamID), nil, &d); err != nil {
		return nil, err
	}
	if d.Members == nil {
		return []TeamMembership{}, nil
	}
	return d.Members, nil
}

// ListTeamInvitations returns the invitations of a team
func (c *Client) ListTeamInvitations(ctx context.Context, teamID int64) ([]TeamInvitation, error) {
	q := url.Values{}
	setIDIfPositive(q, "team", teamID)

	var invitations []TeamInvitation
	if err := c.list(ctx, invitationsPath, q, &invitations); err != nil {
		return nil, err
	}
	return invitations, nil
}

// InviteToTeam invites a user by email
func (c *Client) InviteToTeam(ctx context.Context, teamID int64, email, role string) (*TeamInvitation, error) {
	var invitation TeamInvitation
	err := c.api.Post(ctx, invitationsPath, inviteRequest{
		Team:             teamID,
		InvitedUserEmail: email,
		Role:             role,
	}, &invitation)
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// AcceptInvitation accepts an invitation addressed to the current user
func (c *Client) AcceptInvitation(ctx context.Context, invitationID int64) error {
	return c.api.Post(ctx, actionPath(invitationsPath, invitationID, "accept"), nil, nil)
}

// DeclineInvitation declines an invitation addressed to the current user
func (c *Client) DeclineInvitation(ctx context.Context, invitationID int64) error {
	return c.api.Post(ctx, actionPath(invitationsPath, invitationID, "decline"), nil, nil)
}
