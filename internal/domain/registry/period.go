package registry

import "fmt"

// Period is the (year, month) grain at which remuneration is recorded.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 2100 && p.Month >= 1 && p.Month <= 12
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Index orders periods chronologically.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
