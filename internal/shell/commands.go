package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/account"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
)

func usageError(name string) error {
	return domain.NewValidationError("usage", commands[name].usage)
}

func cmdRegister(ctx context.Context, s *Session, args []string) error {
	_, kv := parseArgs(args)

	role := domain.RoleCustomer
	if raw, ok := kv["role"]; ok {
		parsed, err := domain.ParseRole(strings.ToLower(raw))
		if err != nil {
			return err
		}
		role = parsed
	}

	id, err := s.svc.Accounts.Register(ctx, account.RegisterRequest{
		NationalID:  kv["rut"],
		Email:       kv["email"],
		Password:    kv["password"],
		Role:        role,
		DisplayName: kv["name"],
	})
	if err != nil {
		return err
	}
	s.printf("account %s created, you can log in now\n", id)
	return nil
}

func cmdLogin(ctx context.Context, s *Session, args []string) error {
	if len(args) != 2 {
		return usageError("login")
	}
	acc, err := s.svc.Accounts.Authenticate(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.user = &acc
	s.cart = cart.New()
	s.printf("Bienvenido, %s (%s)\n", acc.DisplayName, acc.Role)
	return nil
}

func cmdLogout(_ context.Context, s *Session, _ []string) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	s.user = nil
	s.cart.Clear()
	s.printf("signed out\n")
	return nil
}

func cmdWhoami(_ context.Context, s *Session, _ []string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}
	s.printf("%s <%s> role=%s rut=%s id=%s\n", user.DisplayName, user.Email, user.Role, user.NationalID, user.ID)
	if user.Store != nil {
		s.printf("store: %s\n", user.Store.StoreName)
	}
	return nil
}

func cmdProducts(ctx context.Context, s *Session, args []string) error {
	var (
		products []domain.Product
		err      error
	)
	if len(args) > 0 && strings.EqualFold(args[0], "mine") {
		user, rerr := s.requireRole(domain.RoleSupplier)
		if rerr != nil {
			return rerr
		}
		products, err = s.svc.Catalog.ListByOwner(ctx, user.ID)
	} else {
		products, err = s.svc.Catalog.ListAll(ctx)
	}
	if err != nil {
		return err
	}
	if len(products) == 0 {
		s.printf("no products\n")
		return nil
	}

	w := s.table()
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, s.money(p.Price), p.StockQuantity, p.Category)
	}
	return w.Flush()
}

func cmdProduct(ctx context.Context, s *Session, args []string) error {
	if len(args) == 0 {
		return usageError("product")
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	positional, kv := parseArgs(rest)

	switch sub {
	case "show":
		if len(positional) != 1 {
			return usageError("product")
		}
		p, err := s.svc.Catalog.Get(ctx, positional[0])
		if err != nil {
			return err
		}
		s.printProduct(p)
		return nil

	case "add":
		user, err := s.requireUser()
		if err != nil {
			return err
		}
		if !user.CanManageCatalog() {
			return fmt.Errorf("%w: %s accounts cannot add products", domain.ErrForbidden, user.Role)
		}
		fields, err := productFields(kv)
		if err != nil {
			return err
		}
		if fields.Name == nil {
			return domain.ErrNameRequired
		}
		switch {
		case user.Role == domain.RoleSupplier:
			fields.OwnerID = domain.Ptr(user.ID)
		case kv["owner"] != "":
			fields.OwnerID = domain.Ptr(kv["owner"])
		}
		p, err := s.svc.Catalog.AddProduct(ctx, fields)
		if err != nil {
			return err
		}
		s.printf("product %s added\n", p.ID)
		return nil

	case "update":
		if len(positional) != 1 {
			return usageError("product")
		}
		if _, err := s.ownedProduct(ctx, positional[0]); err != nil {
			return err
		}
		fields, err := productFields(kv)
		if err != nil {
			return err
		}
		p, err := s.svc.Catalog.UpdateProduct(ctx, positional[0], fields)
		if err != nil {
			return err
		}
		s.printProduct(p)
		return nil

	case "delete":
		if len(positional) != 1 {
			return usageError("product")
		}
		if _, err := s.ownedProduct(ctx, positional[0]); err != nil {
			return err
		}
		if err := s.svc.Catalog.DeleteProduct(ctx, positional[0]); err != nil {
			return err
		}
		s.cart.Set(positional[0], 0)
		s.printf("product %s deleted\n", positional[0])
		return nil

	default:
		return usageError("product")
	}
}

// ownedProduct возвращает товар, если вошедший пользователь вправе им управлять.
func (s *Session) ownedProduct(ctx context.Context, id string) (domain.Product, error) {
	user, err := s.requireUser()
	if err != nil {
		return domain.Product{}, err
	}
	p, err := s.svc.Catalog.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !user.CanManageProduct(p) {
		return domain.Product{}, fmt.Errorf("%w: product %s belongs to another seller", domain.ErrForbidden, id)
	}
	return p, nil
}

func productFields(kv map[string]string) (domain.ProductFields, error) {
	var fields domain.ProductFields
	if v, ok := kv["name"]; ok {
		fields.Name = domain.Ptr(v)
	}
	if v, ok := kv["description"]; ok {
		fields.Description = domain.Ptr(v)
	}
	if v, ok := kv["category"]; ok {
		fields.Category = domain.Ptr(v)
	}
	if v, ok := kv["image"]; ok {
		fields.ImageRef = domain.Ptr(v)
	}
	if v, ok := kv["price"]; ok {
		price, err := parsePrice(v)
		if err != nil {
			return domain.ProductFields{}, err
		}
		fields.Price = &price
	}
	if v, ok := kv["stock"]; ok {
		stock, err := parseStock(v)
		if err != nil {
			return domain.ProductFields{}, err
		}
		fields.StockQuantity = &stock
	}
	return fields, nil
}

func (s *Session) printProduct(p domain.Product) {
	w := s.table()
	fmt.Fprintf(w, "id:\t%s\n", p.ID)
	fmt.Fprintf(w, "name:\t%s\n", p.Name)
	fmt.Fprintf(w, "price:\t%s\n", s.money(p.Price))
	fmt.Fprintf(w, "stock:\t%d\n", p.StockQuantity)
	if p.Category != "" {
		fmt.Fprintf(w, "category:\t%s\n", p.Category)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "description:\t%s\n", p.Description)
	}
	if p.ImageRef != "" {
		fmt.Fprintf(w, "image:\t%s\n", p.ImageRef)
	}
	_ = w.Flush()
}

func cmdCart(ctx context.Context, s *Session, args []string) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if len(args) == 0 {
		return s.showCart(ctx)
	}

	sub, rest := strings.ToLower(args[0]), args[1:]
	switch sub {
	case "show":
		return s.showCart(ctx)

	case "add":
		if len(rest) < 1 || len(rest) > 2 {
			return usageError("cart")
		}
		qty := 1
		if len(rest) == 2 {
			var err error
			if qty, err = parseQuantity(rest[1]); err != nil {
				return err
			}
		}
		p, err := s.svc.Catalog.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		if want := s.cart.Quantity(p.ID) + qty; want > p.StockQuantity {
			return fmt.Errorf("%w: %s has %d in stock, cart would hold %d", domain.ErrInsufficientStock, p.Name, p.StockQuantity, want)
		}
		s.cart.Add(p.ID, qty)
		s.printf("%d x %s in cart\n", s.cart.Quantity(p.ID), p.Name)
		return nil

	case "remove":
		if len(rest) < 1 || len(rest) > 2 {
			return usageError("cart")
		}
		if len(rest) == 1 {
			s.cart.Set(rest[0], 0)
		} else {
			qty, err := parseQuantity(rest[1])
			if err != nil {
				return err
			}
			s.cart.Remove(rest[0], qty)
		}
		s.printf("cart has %d line(s)\n", s.cart.Len())
		return nil

	case "clear":
		s.cart.Clear()
		s.printf("cart cleared\n")
		return nil

	default:
		return usageError("cart")
	}
}

// showCart печатает корзину по текущим ценам каталога. Итог здесь ориентировочный:
// окончательная цена фиксируется при оформлении.
func (s *Session) showCart(ctx context.Context) error {
	if s.cart.IsEmpty() {
		s.printf("cart is empty\n")
		return nil
	}

	total := decimal.Zero
	w := s.table()
	fmt.Fprintln(w, "ID\tNAME\tQTY\tUNIT\tSUBTOTAL")
	for _, line := range s.cart.Lines() {
		p, err := s.svc.Catalog.Get(ctx, line.ProductID)
		if domain.IsNotFound(err) {
			fmt.Fprintf(w, "%s\t(unavailable)\t%d\t-\t-\n", line.ProductID, line.Quantity)
			continue
		}
		if err != nil {
			return err
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, line.Quantity, s.money(p.Price), s.money(subtotal))
	}
	fmt.Fprintf(w, "\t\t\tTOTAL\t%s\n", s.money(total))
	return w.Flush()
}

func cmdCheckout(ctx context.Context, s *Session, args []string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}
	_, kv := parseArgs(args)

	method, err := domain.ParsePaymentMethod(kv["payment"])
	if err != nil {
		return err
	}

	order, err := s.svc.Orders.Checkout(ctx, checkout.Request{
		Buyer: user,
		Cart:  s.cart,
		Shipping: domain.ShippingInfo{
			FullName:   kv["name"],
			Address:    kv["address"],
			PostalCode: kv["postal"],
			NationalID: kv["rut"],
		},
		PaymentMethod:  method,
		DiscountCode:   kv["discount"],
		IdempotencyKey: kv["key"],
	})
	if err != nil {
		return err
	}

	s.printf("order %s placed\n", order.ID)
	s.printOrder(order)
	return nil
}

func cmdOrders(ctx context.Context, s *Session, _ []string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	var orders []domain.Order
	if user.Role == domain.RoleAdmin {
		orders, err = s.svc.Orders.ListOrders(ctx)
	} else {
		orders, err = s.svc.Orders.ListByBuyer(ctx, user.ID)
	}
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		s.printf("no orders\n")
		return nil
	}

	w := s.table()
	fmt.Fprintln(w, "ID\tPLACED\tUNITS\tTOTAL\tPAYMENT")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", o.ID, shortDate(o), o.Units(), s.money(o.NetTotal), o.PaymentMethod)
	}
	return w.Flush()
}

func cmdOrder(ctx context.Context, s *Session, args []string) error {
	if len(args) < 2 {
		return usageError("order")
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}
	sub, id := strings.ToLower(args[0]), args[1]

	view, err := s.svc.Orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canSeeOrder(user, view.Order) {
		return fmt.Errorf("%w: order %s belongs to another buyer", domain.ErrForbidden, id)
	}

	switch sub {
	case "show":
		s.printOrder(view.Order)
		s.printf("status: %s", view.Status.FulfillmentStatus)
		if view.Status.PaymentStatus != "" {
			s.printf(" (payment %s)", view.Status.PaymentStatus)
		}
		if view.Status.TrackingRef != "" {
			s.printf(" tracking %s", view.Status.TrackingRef)
		}
		s.printf("\n")
		return nil

	case "history":
		updates, err := s.svc.Orders.History(ctx, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			s.printf("no status updates\n")
			return nil
		}
		w := s.table()
		fmt.Fprintln(w, "WHEN\tSTATUS\tPAYMENT\tTRACKING\tNOTE")
		for _, u := range updates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.Occurred.Format("2006-01-02 15:04"), u.FulfillmentStatus, u.PaymentStatus, u.TrackingRef, u.Note)
		}
		return w.Flush()

	case "status":
		if user.Role != domain.RoleAdmin && user.Role != domain.RoleSupplier {
			return fmt.Errorf("%w: only admins and sellers can change order status", domain.ErrForbidden)
		}
		if len(args) < 3 {
			return usageError("order")
		}
		_, kv := parseArgs(args[3:])
		update, err := s.svc.Orders.UpdateStatus(ctx, id, checkout.StatusChange{
			FulfillmentStatus: domain.FulfillmentStatus(strings.ToLower(args[2])),
			PaymentStatus:     domain.PaymentStatus(strings.ToLower(kv["payment"])),
			TrackingRef:       kv["tracking"],
			Note:              kv["note"],
		})
		if err != nil {
			return err
		}
		s.printf("order %s is now %s\n", id, update.FulfillmentStatus)
		return nil

	default:
		return usageError("order")
	}
}

// canSeeOrder: покупатель видит свои заказы, админ видит все, поставщик видит заказы
// со своими товарами.
func canSeeOrder(user domain.Account, order domain.Order) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSupplier:
		for _, item := range order.LineItems {
			if item.SellerID == user.ID {
				return true
			}
		}
		return false
	default:
		return order.BuyerID == user.ID
	}
}

func (s *Session) printOrder(o domain.Order) {
	w := s.table()
	fmt.Fprintln(w, "PRODUCT\tQTY\tUNIT\tSUBTOTAL")
	for _, item := range o.LineItems {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", item.ProductName, item.Quantity, s.money(item.UnitPriceAtPurchase), s.money(item.Subtotal))
	}
	fmt.Fprintf(w, "\t\tGROSS\t%s\n", s.money(o.GrossTotal))
	if o.DiscountCode != "" {
		fmt.Fprintf(w, "\t\tDISCOUNT %s\t%s%%\n", o.DiscountCode, o.DiscountRate.Mul(decimal.NewFromInt(100)).String())
	}
	fmt.Fprintf(w, "\t\tTOTAL\t%s\n", s.money(o.NetTotal))
	_ = w.Flush()
	s.printf("ship to: %s, %s\n", o.Shipping.FullName, o.Shipping.Address)
}

func cmdReport(ctx context.Context, s *Session, args []string) error {
	user, err := s.requireRole(domain.RoleSupplier, domain.RoleAdmin)
	if err != nil {
		return err
	}

	sellerID := user.ID
	if user.Role == domain.RoleAdmin {
		if len(args) != 1 {
			return usageError("report")
		}
		sellerID = args[0]
	}

	report, err := s.svc.Reports.SupplierSales(ctx, sellerID)
	if err != nil {
		return err
	}
	if report.Count == 0 {
		s.printf("no sales yet\n")
		return nil
	}

	w := s.table()
	fmt.Fprintln(w, "SALE\tDATE\tPRODUCT\tQTY\tUNIT\tSUBTOTAL")
	for _, row := range report.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", row.SaleID, row.PlacedAt.Format("2006-01-02"), row.ProductName, row.Quantity, s.money(row.UnitPrice), s.money(row.Subtotal))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	s.printf("%d sale line(s), %d unit(s), revenue %s\n", report.Count, report.Units, s.money(report.Revenue))
	return nil
}

func cmdSuppliers(ctx context.Context, s *Session, _ []string) error {
	suppliers, err := s.svc.Accounts.ListByRole(ctx, domain.RoleSupplier)
	if err != nil {
		return err
	}
	if len(suppliers) == 0 {
		s.printf("no suppliers\n")
		return nil
	}

	w := s.table()
	fmt.Fprintln(w, "ID\tNAME\tSTORE\tPHONE")
	for _, acc := range suppliers {
		store, phone := "-", "-"
		if acc.Store != nil {
			store, phone = acc.Store.StoreName, acc.Store.ContactPhone
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", acc.ID, acc.DisplayName, store, phone)
	}
	return w.Flush()
}

func cmdAccount(ctx context.Context, s *Session, args []string) error {
	if len(args) != 2 || !strings.EqualFold(args[0], "delete") {
		return usageError("account")
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.svc.Accounts.Delete(ctx, user, args[1]); err != nil {
		return err
	}
	s.printf("account %s deleted\n", args[1])
	return nil
}

func cmdStore(ctx context.Context, s *Session, args []string) error {
	if len(args) == 0 || !strings.EqualFold(args[0], "profile") {
		return usageError("store")
	}
	user, err := s.requireRole(domain.RoleSupplier)
	if err != nil {
		return err
	}
	_, kv := parseArgs(args[1:])

	updated, err := s.svc.Accounts.UpdateStoreProfile(ctx, user.ID, domain.StoreProfile{
		StoreName:        kv["name"],
		StoreDescription: kv["description"],
		ContactPhone:     kv["phone"],
	})
	if err != nil {
		return err
	}
	s.user = &updated
	s.printf("store %q updated\n", updated.Store.StoreName)
	return nil
}
