package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"circle_notifier/internal/domain/circle"
)

const circleMembersQuery = `
query CircleMembers($id: ID!) {
  circle(id: $id) {
    creator
    memberships(where: { joined: true }) {
      member
    }
  }
}`

// CircleMembers implements circle.Repository. Membership is re-queried on
// every call; the indexer is the only source of truth.
func (c *Client) CircleMembers(ctx context.Context, circleID string) ([]string, string, error) {
	var data struct {
		Circle *struct {
			Creator     string `json:"creator"`
			Memberships []struct {
				Member string `json:"member"`
			} `json:"memberships"`
		} `json:"circle"`
	}
	if err := c.post(ctx, circleMembersQuery, map[string]any{"id": circleID}, &data); err != nil {
		return nil, "", err
	}
	if data.Circle == nil {
		return nil, "", fmt.Errorf("circle %s not found on ledger", circleID)
	}
	members := make([]string, 0, len(data.Circle.Memberships))
	for _, m := range data.Circle.Memberships {
		members = append(members, m.Member)
	}
	return members, data.Circle.Creator, nil
}

const activeGoalsQuery = `
query ActiveGoals {
  goals(where: { status: "active" }) {
    id owner name current target deadline
  }
}`

// ActiveGoals implements circle.Repository.
func (c *Client) ActiveGoals(ctx context.Context) ([]circle.Goal, error) {
	var data struct {
		Goals []struct {
			ID       string `json:"id"`
			Owner    string `json:"owner"`
			Name     string `json:"name"`
			Current  string `json:"current"`
			Target   string `json:"target"`
			Deadline string `json:"deadline"`
		} `json:"goals"`
	}
	if err := c.post(ctx, activeGoalsQuery, nil, &data); err != nil {
		return nil, err
	}
	goals := make([]circle.Goal, 0, len(data.Goals))
	for _, g := range data.Goals {
		goals = append(goals, circle.Goal{
			ID:       g.ID,
			Owner:    g.Owner,
			Name:     g.Name,
			Current:  g.Current,
			Target:   g.Target,
			Deadline: parseTs(g.Deadline),
		})
	}
	return goals, nil
}

const dueCirclesQuery = `
query DueCircles($status: String!, $from: BigInt!, $until: BigInt!) {
  circles(where: { status: $status, roundDeadline_gt: $from, roundDeadline_lte: $until }) {
    id name creator status currentRound roundDeadline
  }
}`

// ActiveCirclesWithDeadlines implements circle.Repository.
func (c *Client) ActiveCirclesWithDeadlines(ctx context.Context, within time.Duration) ([]circle.Circle, error) {
	now := time.Now().Unix()
	vars := map[string]any{
		"status": circle.StatusActive,
		"from":   strconv.FormatInt(now, 10),
		"until":  strconv.FormatInt(now+int64(within.Seconds()), 10),
	}
	var data struct {
		Circles []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Creator       string `json:"creator"`
			Status        string `json:"status"`
			CurrentRound  string `json:"currentRound"`
			RoundDeadline string `json:"roundDeadline"`
		} `json:"circles"`
	}
	if err := c.post(ctx, dueCirclesQuery, vars, &data); err != nil {
		return nil, err
	}
	circles := make([]circle.Circle, 0, len(data.Circles))
	for _, cc := range data.Circles {
		circles = append(circles, circle.Circle{
			ID:            cc.ID,
			Name:          cc.Name,
			Creator:       cc.Creator,
			Status:        cc.Status,
			CurrentRound:  parseInt(cc.CurrentRound),
			RoundDeadline: parseTs(cc.RoundDeadline),
		})
	}
	return circles, nil
}

const membershipsQuery = `
query Memberships($ids: [String!]!) {
  memberships(where: { circle_in: $ids }) {
    circle member joined
  }
}`

const contributionsQuery = `
query Contributions($ids: [String!]!) {
  contributions(where: { circle_in: $ids }) {
    circle contributor round amount
  }
}`

// MembersAndContributions implements circle.Repository: exactly two ledger
// queries regardless of how many circles are due.
func (c *Client) MembersAndContributions(ctx context.Context, circleIDs []string) ([]circle.Membership, []circle.Contribution, error) {
	vars := map[string]any{"ids": circleIDs}

	var memberData struct {
		Memberships []struct {
			Circle string `json:"circle"`
			Member string `json:"member"`
			Joined bool   `json:"joined"`
		} `json:"memberships"`
	}
	if err := c.post(ctx, membershipsQuery, vars, &memberData); err != nil {
		return nil, nil, err
	}

	var contribData struct {
		Contributions []struct {
			Circle      string `json:"circle"`
			Contributor string `json:"contributor"`
			Round       string `json:"round"`
			Amount      string `json:"amount"`
		} `json:"contributions"`
	}
	if err := c.post(ctx, contributionsQuery, vars, &contribData); err != nil {
		return nil, nil, err
	}

	memberships := make([]circle.Membership, 0, len(memberData.Memberships))
	for _, m := range memberData.Memberships {
		memberships = append(memberships, circle.Membership{
			CircleID: m.Circle,
			Member:   m.Member,
			Joined:   m.Joined,
		})
	}
	contributions := make([]circle.Contribution, 0, len(contribData.Contributions))
	for _, cb := range contribData.Contributions {
		contributions = append(contributions, circle.Contribution{
			CircleID:    cb.Circle,
			Contributor: cb.Contributor,
			Round:       parseInt(cb.Round),
			Amount:      cb.Amount,
		})
	}
	return memberships, contributions, nil
}
