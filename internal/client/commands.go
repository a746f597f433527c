package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/pkg/errors"
)

// Init prompts the client settings, generates a wallet and stores the sealed configuration.
func Init(filename string) error {
	cfg := Config{}

	var err error
	cfg.Origin, err = readline.Line("Public origin: ")
	if err != nil {
		return errors.Wrap(err, "could not read origin from stdin")
	}
	cfg.Endpoint, err = readline.Line("Short URL endpoint (optional): ")
	if err != nil {
		return errors.Wrap(err, "could not read endpoint from stdin")
	}
	cfg.Store = DefaultStore
	cfg.LogFile = LogFilename

	cfg.Seed, err = GenerateSeed()
	if err != nil {
		return err
	}
	wallet, err := NewKeyWallet(cfg.Seed)
	if err != nil {
		return err
	}
	fmt.Println("Wallet address: " + wallet.Address())

	return Save(filename, cfg)
}

// A PublishOptions describes the article to publish.
type PublishOptions struct {
	Title     string
	Image     string
	Tags      []string
	Public    bool
	Price     int64
	Mode      libkb.PublishMode
	FromDraft bool
}

// Publish publishes the content read from r, or the saved draft.
func (c *Client) Publish(ctx context.Context, w io.Writer, r io.Reader, opts PublishOptions) error {
	a := &libkb.Article{
		Title:    opts.Title,
		Image:    opts.Image,
		Tags:     opts.Tags,
		IsPublic: opts.Public,
		Price:    opts.Price,
	}

	if opts.FromDraft {
		d, err := c.LoadDraft()
		if err != nil {
			return errors.Wrap(err, "could not load draft")
		}
		if d == nil {
			return errors.New("no saved draft")
		}
		a.Title, a.Content, a.Image, a.Tags, a.IsPublic, a.Price = d.Title, d.Content, d.Image, d.Tags, d.IsPublic, d.Price
	} else {
		content, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrap(err, "could not read content")
		}
		a.Content = string(content)
	}

	mode := opts.Mode
	if mode == "" {
		mode = libkb.PublishSign
	}

	result, err := c.Service.Publish(ctx, a, mode)
	if err != nil {
		return err
	}
	if opts.FromDraft {
		if err = c.ClearDraft(); err != nil {
			c.logger.WithError(err).Warn("could not clear draft")
		}
	}

	fmt.Fprintf(w, "Published %s\n", result.Article.ID)
	fmt.Fprintf(w, "  %s: %s\n", result.Mode, result.Artifact)
	if result.SharedKey != nil {
		fmt.Fprintf(w, "  key id: %s\n", result.SharedKey.KeyID)
	}
	return nil
}

// Read prints the decrypted article.
func (c *Client) Read(ctx context.Context, w io.Writer, id string) error {
	a, err := c.Service.Read(ctx, id)
	if err != nil {
		return err
	}
	render(w, a)
	return nil
}

// List prints the stored articles, newest first.
func (c *Client) List(w io.Writer) error {
	summaries, err := c.Service.List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tVISIBILITY\tCREATED")
	for _, s := range summaries {
		visibility := "public"
		if !s.IsPublic {
			visibility = fmt.Sprintf("private (%d)", s.Price)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Title, visibility, libkb.FromUnixMillisecond(s.CreatedAt).Format(time.RFC3339))
	}
	return tw.Flush()
}

// Share prints the links of a public article.
func (c *Client) Share(ctx context.Context, w io.Writer, id string) error {
	links, err := c.Service.Share(ctx, id)
	if err != nil {
		if links == nil {
			return err
		}
		c.logger.WithError(err).WithField("article_id", id).Warn("short url unavailable")
		fmt.Fprintln(w, "short: unavailable")
	}

	if links.ShortURL != "" {
		fmt.Fprintf(w, "short: %s\n", links.ShortURL)
	}
	fmt.Fprintf(w, "full:  %s\n", links.FullURL)

	if link, err := c.ShareLink(id); err == nil {
		fmt.Fprintf(w, "key:   %s\n", link)
	}
	return nil
}

// Open prints the article of the given link.
func (c *Client) Open(ctx context.Context, w io.Writer, rawurl string, dump bool) error {
	a, err := c.Service.Open(ctx, rawurl)
	if err != nil {
		return err
	}

	if dump {
		fmt.Fprintln(w, Dump(a))
		return nil
	}
	render(w, a)
	return nil
}

// Recover extracts the key of a public article from its publish payload.
func (c *Client) Recover(w io.Writer, id string) error {
	k, err := c.RecoverKey(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Recovered key %s of %s\n", k.KeyID, id)
	return nil
}

// SaveDraft stores the content read from r as the draft.
func (c *Client) SaveDraft(w io.Writer, r io.Reader, opts PublishOptions) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "could not read content")
	}

	d := &libkb.Draft{
		Title:    opts.Title,
		Content:  string(content),
		Image:    opts.Image,
		Tags:     opts.Tags,
		IsPublic: opts.Public,
		Price:    opts.Price,
	}
	if err = libkb.CheckContentSize(d.Content); err != nil {
		return err
	}
	if err = c.Service.SaveDraft(d); err != nil {
		return err
	}

	fmt.Fprintf(w, "Draft saved (%d bytes)\n", len(d.Content))
	return nil
}

// ShowDraft prints the saved draft.
func (c *Client) ShowDraft(w io.Writer) error {
	d, err := c.LoadDraft()
	if err != nil {
		return err
	}
	if d == nil {
		fmt.Fprintln(w, "No saved draft")
		return nil
	}

	fmt.Fprintf(w, "# %s\n", d.Title)
	fmt.Fprintf(w, "saved at %s\n\n", libkb.FromUnixMillisecond(d.SavedAt).Format(time.RFC3339))
	fmt.Fprintln(w, d.Content)
	return nil
}

func render(w io.Writer, a *libkb.Article) {
	fmt.Fprintf(w, "# %s\n", a.Title)
	fmt.Fprintf(w, "by %s, %s\n", a.Author, libkb.FromUnixMillisecond(a.CreatedAt).Format(time.RFC3339))
	if len(a.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(a.Tags, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, a.Content)
}
