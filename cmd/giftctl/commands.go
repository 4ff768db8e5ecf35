package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Patrickog1992/CODELOVE1/internal/gift"
	"github.com/Patrickog1992/CODELOVE1/internal/qrcode"
)

type options struct {
	baseURL     string
	photoPolicy string
	timeZone    string
	maxLen      int
	now         func() time.Time
}

func (o *options) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.timeZone)
	if err != nil {
		return nil, fmt.Errorf("--tz: %w", err)
	}
	return loc, nil
}

func (o *options) codec() (*gift.Codec, error) {
	policy, ok := gift.LookupPhotoPolicy(o.photoPolicy)
	if !ok {
		return nil, fmt.Errorf("--photos: unknown policy %q (want %s, %s or %s)",
			o.photoPolicy, gift.PhotosAll, gift.PhotosLinks, gift.PhotosOmit)
	}
	loc, err := o.location()
	if err != nil {
		return nil, err
	}
	return gift.NewCodec(
		gift.WithPhotoPolicy(policy),
		gift.WithLocation(loc),
		gift.WithClock(o.now),
	), nil
}

// clock is replaced in tests.
var clock = time.Now

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{now: func() time.Time { return clock() }}
	root := &cobra.Command{
		Use:           "giftctl",
		Short:         "Encode, decode and inspect CODELOVE gift links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "Origin the gift viewer is served from")
	root.PersistentFlags().StringVar(&opts.photoPolicy, "photos", string(gift.PhotosLinks), "Photos kept in the payload: all, links or omit")
	root.PersistentFlags().StringVar(&opts.timeZone, "tz", "America/Sao_Paulo", "Time zone used for dates")

	root.AddCommand(newEncodeCmd(opts), newDecodeCmd(opts), newElapsedCmd(opts))
	return root
}

func newEncodeCmd(opts *options) *cobra.Command {
	var file string
	var payloadOnly bool
	var fields gift.Record
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a share link from a gift record in JSON",
		Long: "Builds the record from --title, --message and friends, or reads it as JSON from --file " +
			"or stdin, and prints the share link and the QR target.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec := fields
			if file != "" || !anyChanged(cmd, "title", "message", "date", "music", "music-url", "background") {
				r := cmd.InOrStdin()
				if file != "" && file != "-" {
					f, err := os.Open(file)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				if err := json.NewDecoder(r).Decode(&rec); err != nil {
					return fmt.Errorf("read record: %w", err)
				}
			}
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			sharer := gift.NewSharer(codec, qrcode.New(), gift.WithMaxURLLength(opts.maxLen))
			link, err := sharer.Share(opts.baseURL, rec.Normalize())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if payloadOnly {
				_, err := fmt.Fprintln(w, link.Payload)
				return err
			}
			fmt.Fprintf(w, "url:      %s\n", link.URL)
			fmt.Fprintf(w, "length:   %d\n", link.Length)
			if link.Degraded {
				reductions := make([]string, 0, len(link.Reductions))
				for _, r := range link.Reductions {
					reductions = append(reductions, string(r))
				}
				fmt.Fprintf(w, "qr:       %s\n", link.QRTarget)
				fmt.Fprintf(w, "reduced:  %s\n", strings.Join(reductions, ", "))
			} else if link.Oversize {
				fmt.Fprintf(w, "warning:  %s\n", link.Warning)
			}
			if link.DroppedPhotos > 0 {
				fmt.Fprintf(w, "dropped:  %d photo(s) left out by --photos %s\n", link.DroppedPhotos, codec.PhotoPolicy())
			}
			fmt.Fprintf(w, "qr image: %s\n", link.QRImageURL)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the gift record (default stdin)")
	cmd.Flags().StringVar(&fields.Title, "title", "", "Gift title")
	cmd.Flags().StringVar(&fields.Message, "message", "", "Gift message")
	cmd.Flags().StringVar(&fields.Date, "date", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fields.Music, "music", "", "Song name")
	cmd.Flags().StringVar(&fields.MusicURL, "music-url", "", "Playable song URL")
	cmd.Flags().StringVar((*string)(&fields.Background), "background", "", "Background animation")
	cmd.Flags().BoolVar(&payloadOnly, "payload", false, "Print only the encoded payload")
	cmd.Flags().IntVar(&opts.maxLen, "max-len", gift.DefaultQRMaxURLLength, "Longest URL the QR code may carry")
	return cmd
}

func newDecodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload|url>",
		Short: "Print the gift record held by a payload or share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			payload := args[0]
			if u, err := url.Parse(payload); err == nil && u.Scheme != "" {
				payload = u.Query().Get(gift.QueryParam)
				if payload == "" {
					return fmt.Errorf("link has no %q parameter", gift.QueryParam)
				}
			}
			rec, err := codec.Decode(payload)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newElapsedCmd(opts *options) *cobra.Command {
	var asJSON bool
	var at string
	cmd := &cobra.Command{
		Use:   "elapsed <date>",
		Short: "Show the years, months and days since a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := opts.location()
			if err != nil {
				return err
			}
			now := opts.now().In(loc)
			if at != "" {
				t, ok := gift.ParseDate(at, loc)
				if !ok {
					return fmt.Errorf("--now: invalid date %q", at)
				}
				now = t
			}
			span, ok := gift.Elapsed(args[0], now)
			if !ok {
				return fmt.Errorf("invalid date %q: use YYYY-MM-DD", args[0])
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(span)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d anos, %d meses, %d dias\n", span.Years, span.Months, span.Days)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the span as JSON")
	cmd.Flags().StringVar(&at, "now", "", "Count up to this date instead of today")
	return cmd
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
