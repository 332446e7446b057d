package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/domain/cart"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/domain/wishlist"
	"github.com/Sentinel-Gate/storefront/internal/service"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with a live cart and wishlist",
	Long: `Start an interactive session. The cart and wishlist are loaded once and
kept in memory; every change is sent to the backend and the new totals are
printed as soon as the local state changes. Type "help" for commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			return newShell(a.sf, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `Commands:
  status                 session and totals
  login <username>       sign in (asks for the password)
  logout                 sign out
  refresh                reload cart and wishlist, drop cached catalog data
  cart                   show cart quantities
  add <id>               add one unit
  remove <id>            remove one unit
  rm <id>                remove the whole line
  wishlist               show wishlisted ids
  wish <id>              toggle wishlist membership
  search <text>          list matching products
  suggest <prefix>       complete a search
  help                   this text
  quit                   leave the shell`

// shell is a line-oriented REPL over one Storefront.
type shell struct {
	sf      *service.Storefront
	in      io.Reader
	scanner *bufio.Scanner
	out     io.Writer

	mu       sync.Mutex
	cartSeen int
	wishSeen int
}

func newShell(sf *service.Storefront, in io.Reader, out io.Writer) *shell {
	return &shell{sf: sf, in: in, scanner: bufio.NewScanner(in), out: out, cartSeen: -1, wishSeen: -1}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// onCart prints the item count whenever it changes.
func (s *shell) onCart(snap cart.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Count != s.cartSeen && s.cartSeen >= 0 {
		fmt.Fprintf(s.out, "[cart: %d item(s)]\n", snap.Count)
	}
	s.cartSeen = snap.Count
}

// onWishlist prints the wishlist size whenever it changes.
func (s *shell) onWishlist(snap wishlist.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(snap.IDs); n != s.wishSeen && s.wishSeen >= 0 {
		fmt.Fprintf(s.out, "[wishlist: %d product(s)]\n", n)
	}
	s.wishSeen = len(snap.IDs)
}

func (s *shell) run(ctx context.Context) error {
	if err := s.sf.Start(ctx); err != nil && !httpapi.IsSessionExpired(err) {
		s.printf("warning: %v\n", err)
	}
	s.cartSeen = s.sf.Cart.Count()
	s.wishSeen = s.sf.Wishlist.Count()
	defer s.sf.Cart.Subscribe(s.onCart)()
	defer s.sf.Wishlist.Subscribe(s.onWishlist)()

	s.printf("storefront shell. Type \"help\" for commands.\n")
	for {
		s.printf("> ")
		if !s.scanner.Scan() {
			s.printf("\n")
			return s.scanner.Err()
		}
		quit, err := s.exec(ctx, s.scanner.Text())
		if err != nil {
			s.printf("error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one input line. It reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		s.printf("%s\n", shellHelp)
	case "status":
		st := s.sf.Status()
		s.printf("signed in: %t, cart: %d item(s), wishlist: %d product(s)\n",
			st.Authenticated, st.CartCount, st.WishlistCount)
	case "login":
		if len(args) != 1 {
			return false, errors.New("usage: login <username>")
		}
		return false, s.login(ctx, args[0])
	case "logout":
		if err := s.sf.Logout(ctx); err != nil {
			return false, err
		}
		s.printf("signed out\n")
	case "refresh":
		s.sf.Catalog.Invalidate()
		return false, s.sf.Start(ctx)
	case "cart":
		s.printCart()
	case "add", "remove", "rm":
		id, err := oneProductID(args)
		if err != nil {
			return false, err
		}
		return false, s.cartOp(ctx, name, id)
	case "wishlist":
		ids := s.sf.Wishlist.IDs()
		if len(ids) == 0 {
			s.printf("wishlist is empty\n")
		}
		for _, id := range ids {
			s.printf("  %s\n", id)
		}
	case "wish":
		id, err := oneProductID(args)
		if err != nil {
			return false, err
		}
		if _, err := s.sf.Wishlist.Toggle(ctx, id); err != nil {
			if errors.Is(err, wishlist.ErrLoginRequired) {
				return false, errNotSignedIn
			}
			return false, err
		}
	case "search":
		products, err := s.sf.Catalog.Products(ctx, catalog.ProductQuery{Search: strings.Join(args, " ")})
		if err != nil {
			return false, err
		}
		for _, p := range products {
			s.printf("  %-6s %-32s %s\n", p.ID, p.Name, p.Price)
		}
	case "suggest":
		names, err := s.sf.Catalog.Suggestions(ctx, strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		for _, n := range names {
			s.printf("  %s\n", n)
		}
	default:
		return false, fmt.Errorf("unknown command %q, type \"help\"", name)
	}
	return false, nil
}

func (s *shell) cartOp(ctx context.Context, name string, id catalog.ProductID) error {
	var res cart.Result
	switch name {
	case "add":
		res = s.sf.Cart.Add(ctx, id)
	case "remove":
		res = s.sf.Cart.Remove(ctx, id)
	default:
		res = s.sf.Cart.FullRemove(ctx, id)
	}
	if res.RequiresLogin {
		s.sf.Cart.CloseLoginPrompt()
		s.printf("Sign in to use the cart: login <username>\n")
		return nil
	}
	return res.Err
}

func (s *shell) printCart() {
	snap := s.sf.Cart.Snapshot()
	if len(snap.Items) == 0 {
		s.printf("cart is empty\n")
		return
	}
	for _, id := range slices.Sorted(maps.Keys(snap.Items)) {
		s.printf("  %-6s x%d\n", id, snap.Items[id])
	}
	s.printf("  %d item(s)\n", snap.Count)
}

func (s *shell) login(ctx context.Context, username string) error {
	s.printf("password: ")
	var password string
	if fd, ok := terminalFd(s.in); ok {
		b, err := term.ReadPassword(fd)
		s.printf("\n")
		if err != nil {
			return err
		}
		password = string(b)
	} else {
		if !s.scanner.Scan() {
			return errors.New("no password given")
		}
		password = s.scanner.Text()
	}
	if err := s.sf.Login(ctx, username, password); err != nil {
		return err
	}
	st := s.sf.Status()
	s.printf("signed in, cart: %d item(s), wishlist: %d product(s)\n", st.CartCount, st.WishlistCount)
	return nil
}

func oneProductID(args []string) (catalog.ProductID, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one product id")
	}
	return catalog.ParseProductID(args[0])
}

// terminalFd returns the descriptor of r when r is a terminal.
func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}
