package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// VisitMonthsInterval bounds generated visit dates: they fall within the current
	// month and the VisitMonthsInterval-1 months before it.
	VisitMonthsInterval = 6
	// CoreDataEpochOffset is the number of seconds between the Unix epoch and
	// 2001-01-01T00:00:00Z, the reference date CoreData stores timestamps against.
	CoreDataEpochOffset = 978307200
	VisitDuration       = 30 * time.Minute
)

var DefaultStatuses = []string{"Open", "Processing", "Closed"}

// Faker produces the random scalar values the generators need.
type Faker struct {
	rand *rand.Rand
}

func NewFaker(seed int64) *Faker {
	return &Faker{rand: rand.New(rand.NewSource(seed))}
}

func (f *Faker) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.rand.Intn(n)
}

func (f *Faker) Pick(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[f.Intn(len(values))]
}

// Status picks from vocab, or from DefaultStatuses when vocab is empty.
func (f *Faker) Status(vocab []string) string {
	if len(vocab) == 0 {
		return f.Pick(DefaultStatuses)
	}
	return f.Pick(vocab)
}

// VisitWindow returns a visit start drawn uniformly from
// [today - (VisitMonthsInterval-1) months, today) and its end VisitDuration later, both
// in CoreData seconds.
func (f *Faker) VisitWindow(now time.Time) (start, end int64) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, -(VisitMonthsInterval - 1), 0)

	span := today.Unix() - from.Unix()
	t := from.Unix() + f.rand.Int63n(span)

	start = t - CoreDataEpochOffset
	return start, start + int64(VisitDuration/time.Second)
}

// ToCoreDataTime converts a wall-clock time to CoreData seconds.
func ToCoreDataTime(t time.Time) int64 {
	return t.Unix() - CoreDataEpochOffset
}

// EntityID returns an 18 character external identifier that starts with prefix.
func (f *Faker) EntityID(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n := 18 - len(prefix); n > 0 && n < len(id) {
		id = id[:n]
	}
	return prefix + id
}

func (f *Faker) FirstName(i int) string {
	return fmt.Sprintf("Contact-%d", i)
}

func (f *Faker) LastName(now time.Time) string {
	return "Generated " + now.Format("02-01-2006 15:04")
}
