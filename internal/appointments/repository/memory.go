package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	appointmentserrors "medislot/internal/appointments/errors"
	"medislot/pkg/model"
)

// slotLocks hands out one mutex per slot triple. Entries are dropped once no
// goroutine holds or waits on them.
type slotLocks struct {
	mu    sync.Mutex
	locks map[model.SlotKey]*slotLock
}

type slotLock struct {
	sync.Mutex
	refs int
}

func (l *slotLocks) lock(key model.SlotKey) func() {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &slotLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// memoryAppointmentRepository backs STORAGE_DRIVER=memory and the tests.
type memoryAppointmentRepository struct {
	slots slotLocks

	mu    sync.RWMutex
	items map[string]*model.Appointment
	live  map[model.SlotKey]string
}

func NewMemoryAppointmentRepository() AppointmentRepository {
	return &memoryAppointmentRepository{
		slots: slotLocks{locks: make(map[model.SlotKey]*slotLock)},
		items: make(map[string]*model.Appointment),
		live:  make(map[model.SlotKey]string),
	}
}

func (r *memoryAppointmentRepository) TryCreate(_ context.Context, appt *model.Appointment) (*model.Appointment, error) {
	key := appt.SlotKey()
	unlock := r.slots.lock(key)
	defer unlock()

	r.mu.RLock()
	_, taken := r.live[key]
	r.mu.RUnlock()
	if taken && appt.Status.IsLive() {
		return nil, fmt.Errorf("%w: doctor %s on %s at %s", appointmentserrors.ErrSlotTaken, key.DoctorID, key.Date, key.TimeSlot)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := *appt
	doc.ID = primitive.NewObjectID().Hex()
	doc.Active = doc.Status.IsLive()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	stored := doc
	r.mu.Lock()
	r.items[doc.ID] = &stored
	if doc.Active {
		r.live[key] = doc.ID
	}
	r.mu.Unlock()

	return &doc, nil
}

func (r *memoryAppointmentRepository) CompareAndSwapStatus(_ context.Context, id string, expected, next model.Status) (*model.Appointment, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.items[id]
	if !ok {
		return nil, appointmentserrors.ErrNotFound
	}
	if appt.Status != expected {
		return nil, appointmentserrors.ErrStatusChanged
	}

	appt.Status = next
	appt.Active = next.IsLive()
	appt.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if !appt.Active {
		key := appt.SlotKey()
		if r.live[key] == id {
			delete(r.live, key)
		}
	}

	out := *appt
	return &out, nil
}

func (r *memoryAppointmentRepository) FindByID(_ context.Context, id string) (*model.Appointment, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.items[id]
	if !ok {
		return nil, appointmentserrors.ErrNotFound
	}
	out := *appt
	return &out, nil
}

// ordered matches the Mongo sort: date, slot position, created_at, id.
func (r *memoryAppointmentRepository) ordered(match func(*model.Appointment) bool) []*model.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Appointment, 0)
	for _, a := range r.items {
		if match(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SlotIndex != b.SlotIndex {
			return a.SlotIndex < b.SlotIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (r *memoryAppointmentRepository) countWhere(match func(*model.Appointment) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, a := range r.items {
		if match(a) {
			n++
		}
	}
	return n
}

func page(items []*model.Appointment, limit int, offset int64) []*model.Appointment {
	if offset >= int64(len(items)) {
		return make([]*model.Appointment, 0)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func byDoctor(doctorID string) func(*model.Appointment) bool {
	return func(a *model.Appointment) bool { return a.DoctorID == doctorID }
}

func byPatient(patientID string) func(*model.Appointment) bool {
	return func(a *model.Appointment) bool { return a.PatientID == patientID }
}

func everyAppointment(*model.Appointment) bool { return true }

func (r *memoryAppointmentRepository) ListByDoctor(_ context.Context, doctorID string, limit int, offset int64) ([]*model.Appointment, error) {
	return page(r.ordered(byDoctor(doctorID)), limit, offset), nil
}

func (r *memoryAppointmentRepository) CountByDoctor(_ context.Context, doctorID string) (int64, error) {
	return r.countWhere(byDoctor(doctorID)), nil
}

func (r *memoryAppointmentRepository) ListByPatient(_ context.Context, patientID string, limit int, offset int64) ([]*model.Appointment, error) {
	return page(r.ordered(byPatient(patientID)), limit, offset), nil
}

func (r *memoryAppointmentRepository) CountByPatient(_ context.Context, patientID string) (int64, error) {
	return r.countWhere(byPatient(patientID)), nil
}

func (r *memoryAppointmentRepository) ListAll(_ context.Context, limit int, offset int64) ([]*model.Appointment, error) {
	return page(r.ordered(everyAppointment), limit, offset), nil
}

func (r *memoryAppointmentRepository) Count(_ context.Context) (int64, error) {
	return r.countWhere(everyAppointment), nil
}
