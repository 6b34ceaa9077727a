// Package shell — построчный интерфейс магазина: регистрация, каталог, корзина и оформление заказа.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/account"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/reporting"
)

const prompt = "> "

// Catalog — операции каталога, доступные из сессии.
type Catalog interface {
	AddProduct(ctx context.Context, fields domain.ProductFields) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, fields domain.ProductFields) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.Product, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Product, error)
}

// Accounts — операции с аккаунтами.
type Accounts interface {
	Register(ctx context.Context, req account.RegisterRequest) (string, error)
	Authenticate(ctx context.Context, email, password string) (domain.Account, error)
	Get(ctx context.Context, id string) (domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
	Delete(ctx context.Context, actor domain.Account, id string) error
	UpdateStoreProfile(ctx context.Context, supplierID string, profile domain.StoreProfile) (domain.Account, error)
}

// Orders — оформление и журнал заказов.
type Orders interface {
	Checkout(ctx context.Context, req checkout.Request) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, change checkout.StatusChange) (domain.StatusUpdate, error)
	Get(ctx context.Context, id string) (checkout.OrderView, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.StatusUpdate, error)
}

// Reports — отчёты поставщика.
type Reports interface {
	SupplierSales(ctx context.Context, sellerID string) (reporting.SupplierReport, error)
}

// Services — всё, с чем работает сессия.
type Services struct {
	Catalog  Catalog
	Accounts Accounts
	Orders   Orders
	Reports  Reports
}

// Session хранит вошедшего пользователя и его корзину. Корзина живёт только в памяти
// и очищается при выходе.
type Session struct {
	svc      Services
	out      io.Writer
	logger   *log.Entry
	currency string
	scale    int32

	user *domain.Account
	cart *cart.Cart
}

// Option настраивает Session.
type Option func(*Session)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithCurrency задаёт валюту для вывода сумм.
func WithCurrency(code string, scale int32) Option {
	return func(s *Session) {
		s.currency = code
		s.scale = scale
	}
}

// NewSession создаёт сессию, которая пишет ответы в out.
func NewSession(svc Services, out io.Writer, opts ...Option) *Session {
	s := &Session{
		svc:      svc,
		out:      out,
		currency: checkout.DefaultCurrency,
		scale:    checkout.DefaultCurrencyScale,
		cart:     cart.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "shell")
	}
	return s
}

// Run читает команды из in, пока не встретит quit, EOF или отмену ctx.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.printf("Escriba 'help' para ver los comandos.\n")
	for {
		s.printf(prompt)
		select {
		case <-ctx.Done():
			s.printf("\n")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.printf("\n")
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := s.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// Exec выполняет одну команду. Возвращает true, если сессию нужно завершить.
func (s *Session) Exec(ctx context.Context, line string) bool {
	args, err := splitArgs(line)
	if err != nil {
		s.fail(err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	name, rest := strings.ToLower(args[0]), args[1:]
	if name == "quit" || name == "exit" {
		s.printf("Hasta pronto.\n")
		return true
	}

	handler, ok := commands[name]
	if !ok {
		s.printf("unknown command %q, try 'help'\n", name)
		return false
	}
	if err := handler.run(ctx, s, rest); err != nil {
		s.logger.WithError(err).WithField("command", name).Debug("command failed")
		s.fail(err)
	}
	return false
}

// User возвращает вошедшего пользователя или nil.
func (s *Session) User() *domain.Account {
	return s.user
}

// Cart возвращает корзину сессии.
func (s *Session) Cart() *cart.Cart {
	return s.cart
}

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, s *Session, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":      {usage: "help", summary: "list commands", run: cmdHelp},
		"register":  {usage: "register rut=.. email=.. password=.. role=customer|supplier name=..", summary: "create an account", run: cmdRegister},
		"login":     {usage: "login <email> <password>", summary: "sign in", run: cmdLogin},
		"logout":    {usage: "logout", summary: "sign out and clear the cart", run: cmdLogout},
		"whoami":    {usage: "whoami", summary: "show the signed-in account", run: cmdWhoami},
		"products":  {usage: "products [mine]", summary: "list the catalog", run: cmdProducts},
		"product":   {usage: "product add|update|delete|show ...", summary: "manage a product", run: cmdProduct},
		"cart":      {usage: "cart add|remove|show|clear ...", summary: "edit the cart", run: cmdCart},
		"checkout":  {usage: "checkout name=.. address=.. payment=webpay|mach|bancoestado|transferencia [discount=..] [postal=..] [rut=..] [key=..]", summary: "place an order", run: cmdCheckout},
		"orders":    {usage: "orders", summary: "purchase history (all orders for admins)", run: cmdOrders},
		"order":     {usage: "order show|status|history <id> ...", summary: "inspect or update an order", run: cmdOrder},
		"report":    {usage: "report [seller-id]", summary: "supplier sales report", run: cmdReport},
		"suppliers": {usage: "suppliers", summary: "list suppliers and their stores", run: cmdSuppliers},
		"account":   {usage: "account delete <id>", summary: "delete an account (admin)", run: cmdAccount},
		"store":     {usage: "store profile name=.. [description=..] [phone=..]", summary: "edit the supplier store profile", run: cmdStore},
	}
}

func cmdHelp(_ context.Context, s *Session, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	w := s.table()
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", commands[name].usage, commands[name].summary)
	}
	fmt.Fprintf(w, "  quit\texit the shop\n")
	return w.Flush()
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *Session) fail(err error) {
	s.printf("error: %s\n", describe(err))
}

func (s *Session) requireUser() (domain.Account, error) {
	if s.user == nil {
		return domain.Account{}, errNotLoggedIn
	}
	return *s.user, nil
}

func (s *Session) requireRole(roles ...domain.Role) (domain.Account, error) {
	user, err := s.requireUser()
	if err != nil {
		return domain.Account{}, err
	}
	for _, role := range roles {
		if user.Role == role {
			return user, nil
		}
	}
	return domain.Account{}, fmt.Errorf("%w: %s accounts cannot do this", domain.ErrForbidden, user.Role)
}
