package recordclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"classroll/internal/apperr"
	"classroll/internal/notify"
	"classroll/internal/school"
)

type rawNotification struct {
	ID          json.RawMessage `json:"Id"`
	Type        string          `json:"type"`
	Message     string          `json:"message"`
	StudentID   json.RawMessage `json:"studentId"`
	ClassID     json.RawMessage `json:"classId"`
	Date        string          `json:"date"`
	StudentName string          `json:"studentName"`
	ClassName   string          `json:"className"`
	RecipientID json.RawMessage `json:"recipientId"`
	Read        bool            `json:"read"`
	SentAt      string          `json:"sentAt"`
}

type notificationFields struct {
	ID          int    `json:"Id,omitempty"`
	Name        string `json:"Name,omitempty"`
	Type        string `json:"type,omitempty"`
	Message     string `json:"message,omitempty"`
	StudentID   int    `json:"studentId,omitempty"`
	ClassID     int    `json:"classId,omitempty"`
	Date        string `json:"date,omitempty"`
	StudentName string `json:"studentName,omitempty"`
	ClassName   string `json:"className,omitempty"`
	RecipientID int    `json:"recipientId,omitempty"`
	Read        bool   `json:"read"`
	SentAt      string `json:"sentAt,omitempty"`
}

// Notifications keeps notifications on the record platform.
type Notifications struct {
	c *Client
}

// NewNotifications creates a notification store backed by c.
func NewNotifications(c *Client) *Notifications {
	return &Notifications{c: c}
}

// List returns notifications of one type (all when typ is empty), newest first.
func (n *Notifications) List(ctx context.Context, typ string) ([]notify.Notification, error) {
	var where []Condition
	if typ != "" {
		where = append(where, Eq("type", typ))
	}
	items, err := n.c.Fetch(ctx, EntityNotification, where...)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Notification, 0, len(items))
	for _, it := range items {
		nt, err := decodeNotification(it)
		if err != nil {
			return nil, err
		}
		if typ == "" || nt.Type == typ {
			out = append(out, nt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (n *Notifications) Create(ctx context.Context, nt notify.Notification) (notify.Notification, error) {
	raw, err := n.c.Create(ctx, EntityNotification, toFields(nt))
	if err != nil {
		return notify.Notification{}, err
	}
	return decodeNotification(raw)
}

// MarkRead writes the stored notification back with read set.
func (n *Notifications) MarkRead(ctx context.Context, id int) error {
	raw, err := n.c.GetByID(ctx, EntityNotification, id)
	if err != nil {
		return err
	}
	cur, err := decodeNotification(raw)
	if err != nil {
		return err
	}
	cur.Read = true
	fields := toFields(cur)
	fields.ID = id
	_, err = n.c.Update(ctx, EntityNotification, fields)
	return err
}

func toFields(nt notify.Notification) notificationFields {
	f := notificationFields{
		Name:        nt.Message,
		Type:        nt.Type,
		Message:     nt.Message,
		StudentID:   nt.StudentID,
		ClassID:     nt.ClassID,
		Date:        nt.Date,
		StudentName: nt.StudentName,
		ClassName:   nt.ClassName,
		RecipientID: nt.RecipientID,
		Read:        nt.Read,
	}
	if !nt.SentAt.IsZero() {
		f.SentAt = nt.SentAt.UTC().Format(time.RFC3339)
	}
	return f
}

func decodeNotification(raw json.RawMessage) (notify.Notification, error) {
	var rn rawNotification
	if err := json.Unmarshal(raw, &rn); err != nil {
		return notify.Notification{}, apperr.Unavailable("decode notification", err)
	}
	id, err := school.FlexInt(rn.ID)
	if err != nil {
		return notify.Notification{}, apperr.Unavailable("decode notification", fmt.Errorf("id: %w", err))
	}
	nt := notify.Notification{
		ID:          id,
		Type:        rn.Type,
		Message:     rn.Message,
		Date:        rn.Date,
		StudentName: rn.StudentName,
		ClassName:   rn.ClassName,
		Read:        rn.Read,
	}
	// Optional references; absent values stay zero.
	nt.StudentID, _ = school.FlexInt(rn.StudentID)
	nt.ClassID, _ = school.FlexInt(rn.ClassID)
	nt.RecipientID, _ = school.FlexInt(rn.RecipientID)
	if ts, err := time.Parse(time.RFC3339, rn.SentAt); err == nil {
		nt.SentAt = ts.UTC()
	}
	return nt, nil
}
