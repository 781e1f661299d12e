package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/events"
	"github.com/spec-kit/senseirm/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: map[string]*domain.User{}}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	m.seq++
	user.ID = fmt.Sprintf("user-%d", m.seq)
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if filter.Search == "" || strings.Contains(strings.ToLower(u.Name+u.Email), strings.ToLower(filter.Search)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

type memClients struct {
	mu      sync.Mutex
	seq     int
	order   []string
	clients map[string]*domain.Client
}

func newMemClients(clients ...domain.Client) *memClients {
	m := &memClients{clients: map[string]*domain.Client{}}
	for i := range clients {
		c := clients[i]
		m.clients[c.ID] = &c
		m.order = append(m.order, c.ID)
	}
	return m
}

func (m *memClients) Create(_ context.Context, client *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	client.ID = fmt.Sprintf("client-%d", m.seq)
	cp := *client
	m.clients[client.ID] = &cp
	m.order = append(m.order, client.ID)
	return nil
}

func (m *memClients) Update(_ context.Context, client *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *client
	m.clients[client.ID] = &cp
	return nil
}

func (m *memClients) GetByID(_ context.Context, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) List(_ context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, id := range m.order {
		c := m.clients[id]
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

// ListByIDs deliberately returns matches in reverse storage order.
func (m *memClients) ListByIDs(_ context.Context, ids []string) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Client
	for i := len(m.order) - 1; i >= 0; i-- {
		if c := m.clients[m.order[i]]; want[c.ID] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memClients) ListActive(_ context.Context) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, id := range m.order {
		if c := m.clients[id]; c.Status == domain.ClientStatusActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memClients) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.clients, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memClients) Stats(_ context.Context) (domain.ClientStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.ClientStats
	for _, c := range m.clients {
		s.Total++
		switch c.Status {
		case domain.ClientStatusActive:
			s.Active++
		case domain.ClientStatusInactive:
			s.Inactive++
		case domain.ClientStatusProspect:
			s.Prospect++
		}
	}
	return s, nil
}

type memCampaigns struct {
	mu          sync.Mutex
	seq         int
	campaigns   map[string]*domain.Campaign
	transitions []string
	// beforeTransition, when set, runs before each status transition is applied.
	beforeTransition func(id string)
	// recordFailures makes that many RecordDelivery calls fail before one succeeds.
	recordFailures int
	recordCalls    int
}

func newMemCampaigns(campaigns ...domain.Campaign) *memCampaigns {
	m := &memCampaigns{campaigns: map[string]*domain.Campaign{}}
	for i := range campaigns {
		c := campaigns[i]
		m.campaigns[c.ID] = &c
	}
	return m
}

func (m *memCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("campaign-%d", m.seq)
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaigns) Update(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaigns) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) List(_ context.Context, filter repository.CampaignFilter) ([]domain.Campaign, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (m *memCampaigns) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memCampaigns) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.campaigns)), nil
}

func (m *memCampaigns) TransitionStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	if m.beforeTransition != nil {
		m.beforeTransition(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != from {
		return pgx.ErrNoRows
	}
	c.Status = to
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
	return nil
}

func (m *memCampaigns) RecordDelivery(_ context.Context, id string, recipients, success, failed int, sentAt time.Time) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCalls++
	if m.recordFailures > 0 {
		m.recordFailures--
		return nil, errors.New("connection reset by peer")
	}
	c, ok := m.campaigns[id]
	if !ok || c.Status != domain.CampaignStatusSending {
		return nil, pgx.ErrNoRows
	}
	c.RecipientCount += recipients
	c.SuccessCount += success
	c.FailCount += failed
	c.Status = domain.CampaignStatusSent
	c.SentAt = &sentAt
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) ListDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	return out, nil
}

func (m *memCampaigns) status(id string) domain.CampaignStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

type memTasks struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]*domain.Task
	last  repository.TaskFilter
}

func newMemTasks(tasks ...domain.Task) *memTasks {
	m := &memTasks{tasks: map[string]*domain.Task{}}
	for i := range tasks {
		t := tasks[i]
		m.tasks[t.ID] = &t
	}
	return m
}

func (m *memTasks) Create(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("task-%d", m.seq)
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) Update(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = filter
	var out []domain.Task
	for _, t := range m.tasks {
		if v := filter.VisibleTo; v != nil && !(t.AssignedTo == *v || t.CreatedBy == *v || t.IsShared) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tasks)), nil
}

type memSettings struct {
	mu       sync.Mutex
	settings *domain.SystemSettings
	gets     int
}

func (m *memSettings) Get(_ context.Context) (domain.SystemSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *memSettings) Save(_ context.Context, s *domain.SystemSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	cp := *s
	m.settings = &cp
	return nil
}

// fakeTransport records deliveries and fails for addresses listed in fail.
type fakeTransport struct {
	mu    sync.Mutex
	fail  map[string]bool
	sent  []sentMail
	calls int
}

type sentMail struct {
	To, Subject, HTML string
}

func (f *fakeTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if f.fail[to] {
		return "", errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return fmt.Sprintf("msg-%d", f.calls), nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordedEvents) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	adminIdentity = &domain.RequestIdentity{ID: "admin-1", Role: domain.RoleAdmin, IsActive: true}
	userIdentity  = &domain.RequestIdentity{ID: "user-a", Role: domain.RoleUser, IsActive: true}
	otherIdentity = &domain.RequestIdentity{ID: "user-b", Role: domain.RoleUser, IsActive: true}
)

func ptr[T any](v T) *T { return &v }
