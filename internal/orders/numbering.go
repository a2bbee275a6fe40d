package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// OrderNumberPattern matches well-formed order numbers. Only these seed the
// monthly counter.
const OrderNumberPattern = `^ORD[0-9]{6}-[0-9]+$`

var orderNumberRe = regexp.MustCompile(OrderNumberPattern)

// WellFormed reports whether number matches OrderNumberPattern.
func WellFormed(number string) bool {
	return orderNumberRe.MatchString(number)
}

// OrderNumberPrefix returns "ORD<YYYY><MM>" for t.
func OrderNumberPrefix(t time.Time) string {
	return "ORD" + Period(t)
}

// Period returns the "<YYYY><MM>" counter period for t.
func Period(t time.Time) string {
	return t.Format("200601")
}

// FormatOrderNumber renders an order number. The sequence is padded to at
// least three digits and keeps growing past 999.
func FormatOrderNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%03d", OrderNumberPrefix(t), seq)
}

// NextSequence returns the sequence following last. Empty or malformed
// numbers restart at 1.
func NextSequence(last string) int {
	if last == "" {
		return 1
	}
	parts := strings.Split(last, "-")
	if len(parts) != 2 {
		return 1
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 1
	}
	return n + 1
}
