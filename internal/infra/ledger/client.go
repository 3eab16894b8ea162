// Package ledger is the read-side adapter for the external indexed event
// feed. It implements event.Source and circle.Repository over the indexer's
// GraphQL HTTP endpoint. All numeric ledger values arrive as base-10 strings
// (BigInt in the indexer schema) and are converted at the edge.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/event"
)

const requestTimeout = 15 * time.Second

// Client queries the indexer endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *logrus.Entry
}

func NewClient(endpoint string, log *logrus.Entry) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphError struct {
	Message string `json:"message"`
}

// post issues one GraphQL request and decodes the data object into out.
func (c *Client) post(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding ledger query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("querying ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, snippet)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphError    `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding ledger response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("ledger query error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding ledger data: %w", err)
	}
	return nil
}

// parseTs converts the indexer's BigInt timestamp string to Unix seconds.
func parseTs(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

const eventsQuery = `
query EventsSince($since: BigInt!) {
  memberJoineds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    member circle timestamp
  }
  payoutDistributeds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    recipient circle amount round timestamp
  }
  contributionMades(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    contributor circle amount round timestamp
  }
  collateralWithdrawns(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    member circle amount timestamp
  }
  memberInviteds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    inviter invitee circle timestamp
  }
  votingInitiateds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    initiator circle subject timestamp
  }
  voteExecuteds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    executor circle subject approved timestamp
  }
  memberForfeiteds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    member circle amount round timestamp
  }
  reputationChangeds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    member newScore timestamp
  }
  categoryChangeds(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    circle changedBy oldCategory newCategory timestamp
  }
  referralPaids(where: { timestamp_gt: $since }, orderBy: timestamp, orderDirection: asc) {
    referrer referee amount timestamp
  }
  _meta { block { timestamp } }
}`

type eventsResponse struct {
	MemberJoineds []struct {
		Member    string `json:"member"`
		Circle    string `json:"circle"`
		Timestamp string `json:"timestamp"`
	} `json:"memberJoineds"`
	PayoutDistributeds []struct {
		Recipient string `json:"recipient"`
		Circle    string `json:"circle"`
		Amount    string `json:"amount"`
		Round     string `json:"round"`
		Timestamp string `json:"timestamp"`
	} `json:"payoutDistributeds"`
	ContributionMades []struct {
		Contributor string `json:"contributor"`
		Circle      string `json:"circle"`
		Amount      string `json:"amount"`
		Round       string `json:"round"`
		Timestamp   string `json:"timestamp"`
	} `json:"contributionMades"`
	CollateralWithdrawns []struct {
		Member    string `json:"member"`
		Circle    string `json:"circle"`
		Amount    string `json:"amount"`
		Timestamp string `json:"timestamp"`
	} `json:"collateralWithdrawns"`
	MemberInviteds []struct {
		Inviter   string `json:"inviter"`
		Invitee   string `json:"invitee"`
		Circle    string `json:"circle"`
		Timestamp string `json:"timestamp"`
	} `json:"memberInviteds"`
	VotingInitiateds []struct {
		Initiator string `json:"initiator"`
		Circle    string `json:"circle"`
		Subject   string `json:"subject"`
		Timestamp string `json:"timestamp"`
	} `json:"votingInitiateds"`
	VoteExecuteds []struct {
		Executor  string `json:"executor"`
		Circle    string `json:"circle"`
		Subject   string `json:"subject"`
		Approved  bool   `json:"approved"`
		Timestamp string `json:"timestamp"`
	} `json:"voteExecuteds"`
	MemberForfeiteds []struct {
		Member    string `json:"member"`
		Circle    string `json:"circle"`
		Amount    string `json:"amount"`
		Round     string `json:"round"`
		Timestamp string `json:"timestamp"`
	} `json:"memberForfeiteds"`
	ReputationChangeds []struct {
		Member    string `json:"member"`
		NewScore  string `json:"newScore"`
		Timestamp string `json:"timestamp"`
	} `json:"reputationChangeds"`
	CategoryChangeds []struct {
		Circle      string `json:"circle"`
		ChangedBy   string `json:"changedBy"`
		OldCategory string `json:"oldCategory"`
		NewCategory string `json:"newCategory"`
		Timestamp   string `json:"timestamp"`
	} `json:"categoryChangeds"`
	ReferralPaids []struct {
		Referrer  string `json:"referrer"`
		Referee   string `json:"referee"`
		Amount    string `json:"amount"`
		Timestamp string `json:"timestamp"`
	} `json:"referralPaids"`
	Meta struct {
		Block struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"block"`
	} `json:"_meta"`
}

// EventsSince implements event.Source.
func (c *Client) EventsSince(ctx context.Context, cursor int64) (*event.Batch, error) {
	var data eventsResponse
	vars := map[string]any{"since": strconv.FormatInt(cursor, 10)}
	if err := c.post(ctx, eventsQuery, vars, &data); err != nil {
		return nil, err
	}

	batch := &event.Batch{LatestTimestamp: data.Meta.Block.Timestamp}
	track := func(ts int64) int64 {
		if ts > batch.LatestTimestamp {
			batch.LatestTimestamp = ts
		}
		return ts
	}

	for _, e := range data.MemberJoineds {
		batch.MembersJoined = append(batch.MembersJoined, event.MemberJoined{
			Member: e.Member, CircleID: e.Circle, Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.PayoutDistributeds {
		batch.PayoutsDistributed = append(batch.PayoutsDistributed, event.PayoutDistributed{
			Recipient: e.Recipient, CircleID: e.Circle, Amount: e.Amount,
			Round: parseInt(e.Round), Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.ContributionMades {
		batch.ContributionsMade = append(batch.ContributionsMade, event.ContributionMade{
			Contributor: e.Contributor, CircleID: e.Circle, Amount: e.Amount,
			Round: parseInt(e.Round), Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.CollateralWithdrawns {
		batch.CollateralWithdrawal = append(batch.CollateralWithdrawal, event.CollateralWithdrawn{
			Member: e.Member, CircleID: e.Circle, Amount: e.Amount,
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.MemberInviteds {
		batch.MembersInvited = append(batch.MembersInvited, event.MemberInvited{
			Inviter: e.Inviter, Invitee: e.Invitee, CircleID: e.Circle,
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.VotingInitiateds {
		batch.VotesInitiated = append(batch.VotesInitiated, event.VotingInitiated{
			Initiator: e.Initiator, CircleID: e.Circle, Subject: e.Subject,
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.VoteExecuteds {
		batch.VotesExecuted = append(batch.VotesExecuted, event.VoteExecuted{
			Executor: e.Executor, CircleID: e.Circle, Subject: e.Subject,
			Approved: e.Approved, Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.MemberForfeiteds {
		batch.MembersForfeited = append(batch.MembersForfeited, event.MemberForfeited{
			Member: e.Member, CircleID: e.Circle, Amount: e.Amount,
			Round: parseInt(e.Round), Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.ReputationChangeds {
		batch.ReputationChanges = append(batch.ReputationChanges, event.ReputationChanged{
			Member: e.Member, NewScore: parseTs(e.NewScore),
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.CategoryChangeds {
		batch.CategoryChanges = append(batch.CategoryChanges, event.CategoryChanged{
			CircleID: e.Circle, ChangedBy: e.ChangedBy,
			OldCategory: e.OldCategory, NewCategory: e.NewCategory,
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}
	for _, e := range data.ReferralPaids {
		batch.ReferralsPaid = append(batch.ReferralsPaid, event.ReferralPaid{
			Referrer: e.Referrer, Referee: e.Referee, Amount: e.Amount,
			Timestamp: track(parseTs(e.Timestamp)),
		})
	}

	if batch.LatestTimestamp < cursor {
		batch.LatestTimestamp = cursor
	}
	return batch, nil
}
