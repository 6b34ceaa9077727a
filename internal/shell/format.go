package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

var (
	errNotLoggedIn     = errors.New("you must log in first")
	errUnterminatedArg = errors.New("unterminated quoted argument")
)

// splitArgs разбивает строку по пробелам; двойные кавычки объединяют слова в один аргумент.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errUnterminatedArg
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

// parseArgs делит аргументы на позиционные и пары key=value. Ключи приводятся к нижнему регистру.
func parseArgs(args []string) ([]string, map[string]string) {
	var positional []string
	named := make(map[string]string)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			positional = append(positional, arg)
			continue
		}
		named[strings.ToLower(key)] = value
	}
	return positional, named
}

func parseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(raw)
	if err != nil || qty <= 0 {
		return 0, domain.ErrQuantityInvalid
	}
	return qty, nil
}

func parseStock(raw string) (int, error) {
	stock, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("stock", "must be a whole number")
	}
	return stock, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, domain.NewValidationError("price", "must be a number")
	}
	return price, nil
}

// describe превращает ошибку в строку для пользователя.
func describe(err error) string {
	if domain.IsValidation(err) {
		return "invalid input: " + joinValidation(err)
	}
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

// joinValidation собирает все ValidationError из дерева ошибки.
func joinValidation(err error) string {
	var reasons []string
	collectValidation(err, &reasons)
	if len(reasons) == 0 {
		return strings.ReplaceAll(err.Error(), "\n", "; ")
	}
	return strings.Join(reasons, "; ")
}

func collectValidation(err error, reasons *[]string) {
	switch e := err.(type) {
	case *domain.ValidationError:
		*reasons = append(*reasons, e.Error())
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectValidation(inner, reasons)
		}
	case interface{ Unwrap() error }:
		collectValidation(e.Unwrap(), reasons)
	}
}

func (s *Session) money(amount decimal.Decimal) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(s.scale), s.currency)
}

func (s *Session) table() *tabwriter.Writer {
	return tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
}

func shortDate(o domain.Order) string {
	return o.PlacedAt.Format("2006-01-02 15:04")
}
