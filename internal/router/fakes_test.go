package router

import (
	"context"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/queue"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/service"
	"github.com/akabemail-hash/asutkosks/internal/stats"
)

type memStore struct {
	roles    map[uint64]model.Role
	users    map[uint64]model.Account
	kiosks   map[uint64]model.Kiosk
	visits   map[uint64]model.Visit
	vtypes   map[uint64]model.VisitType
	ptypes   map[uint64]model.ProblemType
	nextID   uint64
	events   []queue.VisitRecordedEvent
	photos   []string
	geocodes int
}

func newMemStore() *memStore {
	return &memStore{
		roles:  map[uint64]model.Role{},
		users:  map[uint64]model.Account{},
		kiosks: map[uint64]model.Kiosk{},
		visits: map[uint64]model.Visit{},
		vtypes: map[uint64]model.VisitType{},
		ptypes: map[uint64]model.ProblemType{},
	}
}

func (m *memStore) id() uint64 { m.nextID++; return m.nextID }

// users

type memUsers struct{ *memStore }

func (s memUsers) GetByUsername(_ context.Context, name string) (model.Account, error) {
	for _, a := range s.users {
		if a.Username == name {
			return s.withRole(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s memUsers) GetByID(_ context.Context, id uint64) (model.Account, error) {
	a, ok := s.users[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return s.withRole(a), nil
}

func (s memUsers) withRole(a model.Account) model.Account {
	a.Role = s.roles[a.RoleID]
	a.RoleName = a.Role.Name
	return a
}

func (s memUsers) List(context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, a := range s.users {
		out = append(out, a.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memUsers) Create(_ context.Context, u *model.User) error {
	for _, a := range s.users {
		if a.Username == u.Username {
			return repository.ErrConflict
		}
	}
	if _, ok := s.roles[u.RoleID]; !ok {
		return repository.ErrInvalidReference
	}
	u.ID = s.id()
	s.users[u.ID] = model.Account{User: *u}
	return nil
}

func (s memUsers) Update(_ context.Context, id uint64, upd repository.UserUpdate) error {
	a, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Username, a.RoleID, a.Language = upd.Username, upd.RoleID, upd.Language
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	s.users[id] = a
	return nil
}

func (s memUsers) Delete(_ context.Context, id uint64) error {
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// roles

type memRoles struct{ *memStore }

func (s memRoles) List(context.Context) ([]model.Role, error) {
	out := []model.Role{}
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s memRoles) GetByID(_ context.Context, id uint64) (model.Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return model.Role{}, repository.ErrNotFound
	}
	return r, nil
}

func (s memRoles) Create(_ context.Context, r *model.Role) error {
	r.ID = s.id()
	r.TokenVersion = 1
	s.roles[r.ID] = *r
	return nil
}

func (s memRoles) Update(_ context.Context, r model.Role) error {
	cur, ok := s.roles[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	r.TokenVersion = cur.TokenVersion
	if cur.Name != r.Name || strings.Join(cur.Permissions, "\x00") != strings.Join(r.Permissions, "\x00") {
		r.TokenVersion++
	}
	s.roles[r.ID] = r
	return nil
}

func (s memRoles) Delete(_ context.Context, id uint64) error {
	for _, a := range s.users {
		if a.RoleID == id {
			return repository.ErrConflict
		}
	}
	delete(s.roles, id)
	return nil
}

// kiosks

type memKiosks struct{ *memStore }

func (s memKiosks) List(_ context.Context, f model.KioskFilter) ([]model.Kiosk, int, error) {
	out := []model.Kiosk{}
	for _, k := range s.kiosks {
		if f.KioskNumber != "" && !strings.Contains(strings.ToLower(k.KioskNumber), strings.ToLower(f.KioskNumber)) {
			continue
		}
		if f.IsActive != nil && k.IsActive != *f.IsActive {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if f.Limit > 0 {
		start := min((f.Page-1)*f.Limit, total)
		out = out[start:min(start+f.Limit, total)]
	}
	return out, total, nil
}

func (s memKiosks) GetByID(_ context.Context, id uint64) (model.Kiosk, error) {
	k, ok := s.kiosks[id]
	if !ok {
		return model.Kiosk{}, repository.ErrNotFound
	}
	return k, nil
}

func (s memKiosks) Create(_ context.Context, k *model.Kiosk) error {
	for _, o := range s.kiosks {
		if o.KioskNumber == k.KioskNumber {
			return repository.ErrConflict
		}
	}
	k.ID = s.id()
	k.CreatedAt = time.Now()
	s.kiosks[k.ID] = *k
	return nil
}

func (s memKiosks) Update(_ context.Context, k model.Kiosk) error {
	if _, ok := s.kiosks[k.ID]; !ok {
		return repository.ErrNotFound
	}
	s.kiosks[k.ID] = k
	return nil
}

func (s memKiosks) SetCoordinates(_ context.Context, id uint64, lat, lon float64) error {
	k, ok := s.kiosks[id]
	if !ok {
		return repository.ErrNotFound
	}
	k.Latitude, k.Longitude = &lat, &lon
	s.kiosks[id] = k
	return nil
}

func (s memKiosks) Delete(_ context.Context, id uint64) error {
	if _, ok := s.kiosks[id]; !ok {
		return repository.ErrNotFound
	}
	for _, v := range s.visits {
		if v.KioskID == id {
			return repository.ErrConflict
		}
	}
	delete(s.kiosks, id)
	return nil
}

func (s memKiosks) DeleteAll(context.Context) (int64, error) {
	n := int64(len(s.kiosks))
	clear(s.kiosks)
	return n, nil
}

func (s memKiosks) Import(ctx context.Context, ks []model.Kiosk) (int, error) {
	n := 0
	for _, k := range ks {
		if err := s.Create(ctx, &k); err == nil {
			n++
		}
	}
	return n, nil
}

func (s memKiosks) Options(context.Context) ([]model.KioskOption, error) {
	out := []model.KioskOption{}
	for _, k := range s.kiosks {
		if k.IsActive {
			out = append(out, model.KioskOption{ID: k.ID, KioskNumber: k.KioskNumber, Address: k.Address})
		}
	}
	return out, nil
}

// visits and the stats source

type memVisits struct{ *memStore }

func (s memVisits) Create(_ context.Context, v *model.Visit) error {
	if _, ok := s.kiosks[v.KioskID]; !ok {
		return repository.ErrInvalidReference
	}
	vt, ok := s.vtypes[v.VisitTypeID]
	if !ok {
		return repository.ErrInvalidReference
	}
	if vt.RequiresProblemType && v.ProblemTypeID == nil {
		return repository.ErrProblemTypeRequired
	}
	if !vt.RequiresProblemType && v.ProblemTypeID != nil {
		return repository.ErrProblemTypeNotAllowed
	}
	v.ID = s.id()
	s.visits[v.ID] = *v
	return nil
}

func (s memVisits) Update(_ context.Context, v model.Visit, replace bool) ([]string, error) {
	cur, ok := s.visits[v.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v.UserID = cur.UserID
	var old []string
	if replace {
		old = cur.Photos
	} else {
		v.Photos = cur.Photos
	}
	s.visits[v.ID] = v
	return old, nil
}

func (s memVisits) Delete(_ context.Context, id uint64) ([]string, error) {
	v, ok := s.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.visits, id)
	return v.Photos, nil
}

func (s memVisits) detail(v model.Visit) model.VisitDetail {
	return model.VisitDetail{Visit: v, KioskNumber: s.kiosks[v.KioskID].KioskNumber, VisitTypeName: s.vtypes[v.VisitTypeID].Name}
}

func (s memVisits) GetByID(_ context.Context, id uint64) (model.VisitDetail, error) {
	v, ok := s.visits[id]
	if !ok {
		return model.VisitDetail{}, repository.ErrNotFound
	}
	return s.detail(v), nil
}

func (s memVisits) Report(_ context.Context, f model.VisitReportFilter) ([]model.VisitDetail, error) {
	out := []model.VisitDetail{}
	for _, v := range s.visits {
		if (f.StartDate == "" || v.VisitDate >= f.StartDate) && (f.EndDate == "" || v.VisitDate <= f.EndDate) {
			out = append(out, s.detail(v))
		}
	}
	return out, nil
}

func (s memVisits) ListByUser(_ context.Context, uid uint64) ([]model.VisitDetail, error) {
	out := []model.VisitDetail{}
	for _, v := range s.visits {
		if v.UserID == uid {
			out = append(out, s.detail(v))
		}
	}
	return out, nil
}

func (s memVisits) CountKiosks(context.Context) (int, error) { return len(s.kiosks), nil }

func (s memVisits) VisitRows(_ context.Context, q stats.VisitQuery) ([]stats.VisitRow, error) {
	var out []stats.VisitRow
	for _, v := range s.visits {
		if v.VisitDate < q.From || (q.To != "" && v.VisitDate > q.To) {
			continue
		}
		if q.UserID != nil && v.UserID != *q.UserID {
			continue
		}
		out = append(out, stats.VisitRow{KioskID: v.KioskID, VisitDate: v.VisitDate})
	}
	return out, nil
}

func (s memVisits) AssignedKioskIDs(_ context.Context, uid uint64, username string) ([]uint64, error) {
	var ids []uint64
	for _, k := range s.kiosks {
		if (k.AssignedUserID != nil && *k.AssignedUserID == uid) ||
			(k.AssignedUserID == nil && k.Supervisor != nil && *k.Supervisor == username) {
			ids = append(ids, k.ID)
		}
	}
	return ids, nil
}

// taxonomies

type memVisitTypes struct{ *memStore }

func (s memVisitTypes) List(context.Context) ([]model.VisitType, error) {
	out := []model.VisitType{}
	for _, vt := range s.vtypes {
		out = append(out, vt)
	}
	return out, nil
}

func (s memVisitTypes) Create(_ context.Context, vt *model.VisitType) error {
	vt.ID = s.id()
	s.vtypes[vt.ID] = *vt
	return nil
}

func (s memVisitTypes) Update(_ context.Context, vt model.VisitType) error {
	if _, ok := s.vtypes[vt.ID]; !ok {
		return repository.ErrNotFound
	}
	s.vtypes[vt.ID] = vt
	return nil
}

func (s memVisitTypes) Delete(_ context.Context, id uint64) error {
	if _, ok := s.vtypes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.vtypes, id)
	return nil
}

type memProblemTypes struct{ *memStore }

func (s memProblemTypes) List(context.Context) ([]model.ProblemType, error) {
	out := []model.ProblemType{}
	for _, pt := range s.ptypes {
		out = append(out, pt)
	}
	return out, nil
}

func (s memProblemTypes) Create(_ context.Context, pt *model.ProblemType) error {
	pt.ID = s.id()
	s.ptypes[pt.ID] = *pt
	return nil
}

func (s memProblemTypes) Update(_ context.Context, pt model.ProblemType) error {
	if _, ok := s.ptypes[pt.ID]; !ok {
		return repository.ErrNotFound
	}
	s.ptypes[pt.ID] = pt
	return nil
}

func (s memProblemTypes) Delete(_ context.Context, id uint64) error {
	if _, ok := s.ptypes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.ptypes, id)
	return nil
}

// collaborators

type memGeocoder struct{ *memStore }

func (s memGeocoder) Geocode(_ context.Context, address string) (service.Point, error) {
	s.geocodes++
	if strings.Contains(address, "nowhere") {
		return service.Point{}, service.ErrAddressNotFound
	}
	return service.Point{Lat: 40.4, Lon: 49.8}, nil
}

type memPhotos struct{ *memStore }

func (s memPhotos) Save(_ context.Context, fh *multipart.FileHeader) (string, error) {
	u := "/uploads/" + fh.Filename
	s.photos = append(s.photos, u)
	return u, nil
}

func (s memPhotos) Remove(_ context.Context, urls []string) {
	for _, u := range urls {
		for i, p := range s.photos {
			if p == u {
				s.photos = append(s.photos[:i], s.photos[i+1:]...)
				break
			}
		}
	}
}

type memEvents struct{ *memStore }

func (s memEvents) PublishVisitRecorded(_ context.Context, ev queue.VisitRecordedEvent) error {
	s.events = append(s.events, ev)
	return nil
}
