package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memorywall/internal/feed"
)

var (
	watchAdmin    bool
	watchUsername string
	watchPassword string
	watchPoll     time.Duration
	watchLimit    int
	watchCompose  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live wall",
	Long: `Loads the wall, then keeps it current from the change stream and a
periodic full refresh. With --admin every post is shown regardless of
moderation status; this needs --token or --username/--password.

With --compose every line typed on stdin is posted as a memory and shows
up on the wall at once, before the server echoes it back.`,
	RunE: runWatch,
}

var (
	submitName      string
	submitAnonymous bool
	submitImage     string
	submitLinks     feed.SocialLinks
)

var submitCmd = &cobra.Command{
	Use:   "submit [content]",
	Short: "Post a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAdmin, "admin", false, "show every post (admin only)")
	watchCmd.Flags().StringVar(&watchUsername, "username", "", "admin username for --admin")
	watchCmd.Flags().StringVar(&watchPassword, "password", "", "admin password for --admin")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", 0, "full refresh interval (default FEED_POLL_INTERVAL)")
	watchCmd.Flags().IntVar(&watchLimit, "limit", 20, "posts to print per refresh, 0 for all")
	watchCmd.Flags().BoolVar(&watchCompose, "compose", false, "post each stdin line as a memory")
	watchCmd.Flags().StringVar(&submitName, "name", "", "author name for --compose")
	watchCmd.Flags().BoolVar(&submitAnonymous, "anonymous", false, "post anonymously with --compose")

	submitCmd.Flags().StringVar(&submitName, "name", "", "author name")
	submitCmd.Flags().BoolVar(&submitAnonymous, "anonymous", false, "post without a name")
	submitCmd.Flags().StringVar(&submitImage, "image", "", "path to a JPEG or PNG")
	submitCmd.Flags().StringVar(&submitLinks.Instagram, "instagram", "", "")
	submitCmd.Flags().StringVar(&submitLinks.Facebook, "facebook", "", "")
	submitCmd.Flags().StringVar(&submitLinks.Threads, "threads", "", "")
	submitCmd.Flags().StringVar(&submitLinks.X, "x", "", "")
	submitCmd.Flags().StringVar(&submitLinks.WhatsApp, "whatsapp", "", "")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := feed.NewClient(serverURL, token)
	source := feed.Source(feed.SourceFunc(client.FetchApproved))
	filter, scope := feed.ApprovedOnly, "approved"

	if watchAdmin {
		if client.Token() == "" {
			if _, err := client.Login(ctx, watchUsername, watchPassword); err != nil {
				return fmt.Errorf("admin login: %w", err)
			}
		}
		source = feed.SourceFunc(client.FetchAll)
		filter, scope = feed.AllPosts, "all"
	}

	streamURL, err := client.StreamURL(scope)
	if err != nil {
		return err
	}
	poll := watchPoll
	if poll <= 0 {
		poll = cfg.PollInterval()
	}

	out := cmd.OutOrStdout()
	opts := []feed.Option{
		feed.WithFilter(filter),
		feed.WithPollInterval(poll),
		feed.WithOnChange(func(view []feed.Post) { render(out, view, watchLimit) }),
	}
	if watchCompose {
		opts = append(opts, feed.WithSubmitter(client))
	}
	session := feed.NewSession(source,
		feed.NewWSSource(streamURL, client.Token(), cfg.ReconnectDelay(), logger),
		logger,
		opts...,
	)
	defer session.Close()

	logger.Info("watching wall", zap.String("server", serverURL), zap.String("scope", scope))
	if err := session.Start(ctx); err != nil {
		return err
	}
	if watchCompose {
		if err := compose(ctx, session, cmd.InOrStdin(), out); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

// compose posts each non-blank line of in through the session until in is
// exhausted or ctx is done. A rejected line is reported and skipped.
func compose(ctx context.Context, session *feed.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			content := strings.TrimSpace(line)
			if content == "" {
				continue
			}
			post, err := session.Submit(ctx, feed.Submission{
				Content:     content,
				Name:        submitName,
				IsAnonymous: submitAnonymous,
			})
			if err != nil {
				fmt.Fprintf(out, "not posted: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "posted %s\n", post.ID)
		}
	}
}

// render prints the newest limit posts of view.
func render(w io.Writer, view []feed.Post, limit int) {
	fmt.Fprintf(w, "\n── %d memories @ %s ──\n", len(view), time.Now().Format(time.Kitchen))
	if limit > 0 && len(view) > limit {
		view = view[:limit]
	}
	for _, p := range view {
		fmt.Fprintln(w, formatPost(p))
	}
}

func formatPost(p feed.Post) string {
	author := "anonymous"
	if p.AuthorName != nil {
		author = *p.AuthorName
	}
	content := strings.Join(strings.Fields(p.Content), " ")
	if r := []rune(content); len(r) > 60 {
		content = string(r[:57]) + "..."
	}
	line := fmt.Sprintf("%-8s %s  %-16s %s", p.Status, p.CreatedAt.Local().Format("Jan 02 15:04"), author, content)
	if p.ImageURL != nil {
		line += " [img]"
	}
	if p.LikesCount > 0 {
		line += fmt.Sprintf(" ♥%d", p.LikesCount)
	}
	return line
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	sub := feed.Submission{
		Content:     args[0],
		Name:        submitName,
		IsAnonymous: submitAnonymous,
	}
	if submitLinks != (feed.SocialLinks{}) {
		links := submitLinks
		sub.SocialLinks = &links
	}

	if submitImage != "" {
		f, err := os.Open(submitImage)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		sub.Image = f
		sub.ImageName = filepath.Base(submitImage)
		sub.ImageSize = info.Size()
	}

	post, err := feed.NewClient(serverURL, token).Create(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", post.ID)
	return nil
}
