package model

import (
	"fmt"
	"strings"
)

// DefaultTimeSlots are the bookable windows offered each day.
var DefaultTimeSlots = []string{"9:00 AM", "10:00 AM", "11:00 AM", "2:00 PM", "3:00 PM", "4:00 PM"}

// SlotSet is the fixed, ordered set of slot labels a doctor can be booked for.
type SlotSet struct {
	labels []string
	order  map[string]int
}

func NewSlotSet(labels []string) (*SlotSet, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("at least one time slot is required")
	}
	set := &SlotSet{
		labels: make([]string, 0, len(labels)),
		order:  make(map[string]int, len(labels)),
	}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("time slot labels cannot be empty")
		}
		if _, dup := set.order[label]; dup {
			return nil, fmt.Errorf("duplicate time slot %q", label)
		}
		set.order[label] = len(set.labels)
		set.labels = append(set.labels, label)
	}
	return set, nil
}

func (s *SlotSet) Contains(label string) bool {
	_, ok := s.order[label]
	return ok
}

// Index returns the position of the label within the day, or -1.
func (s *SlotSet) Index(label string) int {
	if i, ok := s.order[label]; ok {
		return i
	}
	return -1
}

func (s *SlotSet) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}
