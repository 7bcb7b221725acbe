// Package servicetest provides in-memory repositories and collaborators for
// service and handler tests.
package servicetest

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

// Users is an in-memory user repository.
type Users struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]types.User
	order []uuid.UUID
}

func NewUsers() *Users {
	return &Users{byID: map[uuid.UUID]types.User{}}
}

// Put stores user as is, assigning an id when missing.
func (r *Users) Put(user types.User) types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.byID[user.ID]; !ok {
		r.order = append(r.order, user.ID)
	}
	r.byID[user.ID] = user
	return user
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) find(match func(types.User) bool) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if user, ok := r.byID[id]; ok && match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) GetByUsername(_ context.Context, username string) (types.User, error) {
	username = strings.ToLower(username)
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *Users) GetByGoogleID(_ context.Context, googleID string) (types.User, error) {
	return r.find(func(u types.User) bool { return googleID != "" && u.GoogleID == googleID })
}

func (r *Users) FindByUsernameOrEmail(_ context.Context, username, email string) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.User
	for _, id := range r.order {
		user, ok := r.byID[id]
		if ok && (user.Username == strings.ToLower(username) || user.Email == strings.ToLower(email)) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *Users) conflict(user types.User) error {
	for _, other := range r.byID {
		if other.ID == user.ID {
			continue
		}
		switch {
		case other.Username == user.Username:
			return &store.ConflictError{Field: "username"}
		case other.Email == user.Email:
			return &store.ConflictError{Field: "email"}
		case user.GoogleID != "" && other.GoogleID == user.GoogleID:
			return &store.ConflictError{Field: "googleId"}
		}
	}
	return nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	if err := r.conflict(user); err != nil {
		return types.User{}, err
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = user
	r.order = append(r.order, user.ID)
	return user, nil
}

func (r *Users) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	if err := r.conflict(user); err != nil {
		return types.User{}, err
	}
	user.UpdatedAt = time.Now().UTC()
	r.byID[user.ID] = user
	return user, nil
}

func (r *Users) SetAdminFlag(_ context.Context, id uuid.UUID, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsAdmin = isAdmin
	r.byID[id] = user
	return nil
}

func (r *Users) PromoteSuperAdmin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsAdmin = true
	user.IsSuperAdmin = true
	r.byID[id] = user
	return nil
}

func (r *Users) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Users) List(_ context.Context, filter types.UserFilter) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(filter.Search)
	var matched []types.User
	for _, id := range r.order {
		user, ok := r.byID[id]
		if !ok {
			continue
		}
		if search == "" || strings.Contains(user.Username, search) || strings.Contains(user.Email, search) ||
			strings.Contains(strings.ToLower(user.DisplayName), search) {
			matched = append(matched, user)
		}
	}
	return page(matched, filter.Page, filter.Limit), len(matched), nil
}

// Sessions is an in-memory session repository.
type Sessions struct {
	mu      sync.Mutex
	byToken map[string]types.Session
}

func NewSessions() *Sessions {
	return &Sessions{byToken: map[string]types.Session{}}
}

func (r *Sessions) Create(_ context.Context, session types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[session.Token]; ok {
		return &store.ConflictError{Field: "id"}
	}
	r.byToken[session.Token] = session
	return nil
}

func (r *Sessions) Get(_ context.Context, token string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byToken[token]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *Sessions) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

func (r *Sessions) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, session := range r.byToken {
		if session.UserID == userID {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, session := range r.byToken {
		if session.Expired(now) {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

// Has reports whether a session with token exists.
func (r *Sessions) Has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byToken[token]
	return ok
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Permissions is an in-memory permission grant repository.
type Permissions struct {
	mu     sync.Mutex
	grants map[uuid.UUID]types.PermissionGrant
	// Reads counts Get calls.
	Reads int
}

func NewPermissions() *Permissions {
	return &Permissions{grants: map[uuid.UUID]types.PermissionGrant{}}
}

// Put stores grant, replacing any existing one.
func (r *Permissions) Put(grant types.PermissionGrant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grant.UserID] = grant
}

func (r *Permissions) Get(_ context.Context, userID uuid.UUID) (types.PermissionGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	grant, ok := r.grants[userID]
	if !ok {
		return types.PermissionGrant{}, store.ErrNotFound
	}
	return grant, nil
}

func (r *Permissions) List(_ context.Context) ([]types.PermissionGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.PermissionGrant, 0, len(r.grants))
	for _, grant := range r.grants {
		out = append(out, grant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

func (r *Permissions) Create(_ context.Context, grant types.PermissionGrant) (types.PermissionGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grant.UserID]; ok {
		return types.PermissionGrant{}, &store.ConflictError{Field: "id"}
	}
	grant.CreatedAt = time.Now().UTC()
	grant.UpdatedAt = grant.CreatedAt
	r.grants[grant.UserID] = grant
	return grant, nil
}

func (r *Permissions) Update(_ context.Context, grant types.PermissionGrant) (types.PermissionGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grant.UserID]; !ok {
		return types.PermissionGrant{}, store.ErrNotFound
	}
	grant.UpdatedAt = time.Now().UTC()
	r.grants[grant.UserID] = grant
	return grant, nil
}

func (r *Permissions) Delete(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[userID]; !ok {
		return store.ErrNotFound
	}
	delete(r.grants, userID)
	return nil
}

// Images is an in-memory image repository.
type Images struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]types.Image
	order []uuid.UUID
	// CreateErr, when set, fails every Create.
	CreateErr error
}

func NewImages() *Images {
	return &Images{byID: map[uuid.UUID]types.Image{}}
}

func (r *Images) Put(image types.Image) types.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	if _, ok := r.byID[image.ID]; !ok {
		r.order = append(r.order, image.ID)
	}
	r.byID[image.ID] = image
	return image
}

func (r *Images) List(_ context.Context, filter types.ImageFilter) ([]types.Image, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(filter.Search)
	var matched []types.Image
	for _, id := range r.order {
		image, ok := r.byID[id]
		if !ok {
			continue
		}
		if filter.CategoryID != nil && image.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.UserID != nil && image.UserID != *filter.UserID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(image.Title), search) &&
			!strings.Contains(strings.ToLower(image.Location), search) &&
			!strings.Contains(strings.ToLower(image.CameraModel), search) {
			continue
		}
		matched = append(matched, image)
	}
	return page(matched, filter.Page, filter.Limit), len(matched), nil
}

func (r *Images) Get(_ context.Context, id uuid.UUID) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	image, ok := r.byID[id]
	if !ok {
		return types.Image{}, store.ErrNotFound
	}
	return image, nil
}

func (r *Images) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Image, error) {
	images, _, err := r.List(ctx, types.ImageFilter{UserID: &userID, Limit: 1 << 20})
	return images, err
}

func (r *Images) Create(_ context.Context, image types.Image) (types.Image, error) {
	if r.CreateErr != nil {
		return types.Image{}, r.CreateErr
	}
	image.CreatedAt = time.Now().UTC()
	image.UpdatedAt = image.CreatedAt
	return r.Put(image), nil
}

func (r *Images) Update(_ context.Context, image types.Image) (types.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[image.ID]; !ok {
		return types.Image{}, store.ErrNotFound
	}
	image.UpdatedAt = time.Now().UTC()
	r.byID[image.ID] = image
	return image, nil
}

func (r *Images) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Images) CountByCategory(_ context.Context, categoryID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, image := range r.byID {
		if image.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *Images) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Categories is an in-memory category repository.
type Categories struct {
	mu   sync.Mutex
	byID map[uuid.UUID]types.Category
}

func NewCategories() *Categories {
	return &Categories{byID: map[uuid.UUID]types.Category{}}
}

func (r *Categories) Put(category types.Category) types.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	r.byID[category.ID] = category
	return category
}

func (r *Categories) List(_ context.Context) ([]types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Category, 0, len(r.byID))
	for _, category := range r.byID {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Categories) Get(_ context.Context, id uuid.UUID) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category, ok := r.byID[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *Categories) GetByName(_ context.Context, name string) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, category := range r.byID {
		if strings.EqualFold(category.Name, name) {
			return category, nil
		}
	}
	return types.Category{}, store.ErrNotFound
}

func (r *Categories) nameTaken(category types.Category) bool {
	for _, other := range r.byID {
		if other.ID != category.ID && strings.EqualFold(other.Name, category.Name) {
			return true
		}
	}
	return false
}

func (r *Categories) Create(_ context.Context, category types.Category) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(category) {
		return types.Category{}, &store.ConflictError{Field: "name"}
	}
	category.ID = uuid.New()
	category.CreatedAt = time.Now().UTC()
	category.UpdatedAt = category.CreatedAt
	r.byID[category.ID] = category
	return category, nil
}

func (r *Categories) Update(_ context.Context, category types.Category) (types.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[category.ID]; !ok {
		return types.Category{}, store.ErrNotFound
	}
	if r.nameTaken(category) {
		return types.Category{}, &store.ConflictError{Field: "name"}
	}
	r.byID[category.ID] = category
	return category, nil
}

func (r *Categories) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// Collections is an in-memory collection repository.
type Collections struct {
	mu   sync.Mutex
	byID map[uuid.UUID]types.Collection
}

func NewCollections() *Collections {
	return &Collections{byID: map[uuid.UUID]types.Collection{}}
}

func (r *Collections) ListByUser(_ context.Context, userID uuid.UUID) ([]types.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Collection{}
	for _, c := range r.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Collections) Get(_ context.Context, id uuid.UUID) (types.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return types.Collection{}, store.ErrNotFound
	}
	c.ImageIDs = append([]uuid.UUID(nil), c.ImageIDs...)
	return c, nil
}

func (r *Collections) Create(_ context.Context, c types.Collection) (types.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	c.ImageIDs = []uuid.UUID{}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.byID[c.ID] = c
	return c, nil
}

func (r *Collections) Update(_ context.Context, c types.Collection) (types.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[c.ID]
	if !ok {
		return types.Collection{}, store.ErrNotFound
	}
	existing.Name = c.Name
	existing.Description = c.Description
	existing.UpdatedAt = time.Now().UTC()
	r.byID[c.ID] = existing
	return existing, nil
}

func (r *Collections) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Collections) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.byID {
		if c.UserID == userID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *Collections) AddImage(_ context.Context, collectionID, imageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[collectionID]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range c.ImageIDs {
		if id == imageID {
			return &store.ConflictError{Field: "id"}
		}
	}
	c.ImageIDs = append(c.ImageIDs, imageID)
	r.byID[collectionID] = c
	return nil
}

func (r *Collections) RemoveImage(_ context.Context, collectionID, imageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[collectionID]
	if !ok {
		return store.ErrNotFound
	}
	for i, id := range c.ImageIDs {
		if id == imageID {
			c.ImageIDs = append(c.ImageIDs[:i:i], c.ImageIDs[i+1:]...)
			r.byID[collectionID] = c
			return nil
		}
	}
	return store.ErrNotFound
}

// Stats returns fixed dashboard numbers.
type Stats struct {
	Value types.DashboardStats
	Err   error
}

func (s *Stats) Dashboard(context.Context, time.Time) (types.DashboardStats, error) {
	return s.Value, s.Err
}

// Media is an in-memory media provider.
type Media struct {
	mu        sync.Mutex
	objects   map[string]string
	destroyed []string

	// UploadErr fails uploads after a partial object was created.
	UploadErr error
	// BlockUploads makes Upload wait for its context to end.
	BlockUploads bool
	// DestroyErr fails every Destroy.
	DestroyErr error
}

func NewMedia() *Media {
	return &Media{objects: map[string]string{}}
}

func (m *Media) Upload(ctx context.Context, filename string, r io.Reader, _ int64, _ string) (types.MediaAsset, error) {
	key := "photos/" + uuid.NewString() + "-" + filename

	if m.BlockUploads {
		<-ctx.Done()
		m.store(key, "partial")
		return types.MediaAsset{PublicID: key}, ctx.Err()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return types.MediaAsset{}, err
	}
	if m.UploadErr != nil {
		m.store(key, "partial")
		return types.MediaAsset{PublicID: key}, m.UploadErr
	}
	m.store(key, string(data))
	return types.MediaAsset{URL: "https://media.test/" + key, PublicID: key}, nil
}

func (m *Media) store(key, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *Media) Destroy(_ context.Context, publicID string) error {
	if m.DestroyErr != nil {
		return m.DestroyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, publicID)
	m.destroyed = append(m.destroyed, publicID)
	return nil
}

// Objects returns the ids of stored objects.
func (m *Media) Objects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *Media) Destroyed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.destroyed...)
}

// Published is one message recorded by Publisher.
type Published struct {
	Channel string
	Value   any
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func (p *Publisher) PublishJSON(_ context.Context, channel string, v any) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Published{Channel: channel, Value: v})
	return uuid.NewString(), nil
}

func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}

// ErrUnavailable is a generic failure for injecting into fakes.
var ErrUnavailable = errors.New("service unavailable")

func page[T any](items []T, pageNum, limit int) []T {
	if limit < 1 {
		limit = 20
	}
	if pageNum < 1 {
		pageNum = 1
	}
	start := (pageNum - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
