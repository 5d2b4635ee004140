package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/game"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store/memory"
)

// SimulateCmd plays one game against the in-memory store.
type SimulateCmd struct {
	Players      int    `short:"p" default:"4" help:"Number of players"`
	Variant      int    `default:"75" help:"Number pool size (75 or 90)"`
	WinCondition string `name:"win" enum:"line,column,full" default:"line" help:"Winning pattern (line, column, full)"`
	MaxWinners   int    `default:"1" help:"Winners before the game ends"`
	Seed         int64  `short:"s" help:"Seed for a reproducible game, 0 picks one at random"`
	ShowCards    bool   `name:"cards" help:"Print every player's card"`
}

func (c *SimulateCmd) Run(globals *Globals) error {
	if _, err := globals.load(); err != nil {
		return err
	}
	return c.simulate(context.Background(), os.Stdout)
}

func (c *SimulateCmd) simulate(ctx context.Context, w io.Writer) error {
	st := memory.New()
	defer st.Close()

	var opts []game.Option
	if c.Seed != 0 {
		opts = append(opts, game.WithSeed(c.Seed))
	}
	app := game.NewApp(st, st, opts...)

	admin := uuid.New()
	g, err := app.CreateGame(ctx, game.CreateGameRequest{
		AdminID:      admin,
		Variant:      models.Variant(c.Variant),
		WinCondition: models.WinCondition(c.WinCondition),
		MaxWinners:   c.MaxWinners,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "game %s (code %s, %d numbers, %s, %d winner(s))\n",
		g.ID, g.Code, g.Variant, g.WinCondition, g.MaxWinners)

	for i := range c.Players {
		p, err := app.Join(ctx, g.Code, game.JoinRequest{Name: fmt.Sprintf("player-%d", i+1)})
		if err != nil {
			return err
		}
		if c.ShowCards {
			fmt.Fprintf(w, "\n%s\n%s", p.Name, formatCard(p.Card))
		}
	}
	fmt.Fprintln(w)

	if _, err := app.StartGame(ctx, g.ID, admin); err != nil {
		return err
	}

	for {
		res, err := app.DrawNumber(ctx, g.ID, admin)
		if errors.Is(err, game.ErrPoolExhausted) {
			if _, err := app.FinishGame(ctx, g.ID, admin); err != nil {
				return err
			}
			fmt.Fprintln(w, "number pool exhausted")
			break
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "draw %3d: %2d", res.Number.Seq, res.Number.Number)
		for _, p := range res.NewWinners {
			fmt.Fprintf(w, "  BINGO %s (#%d)", p.Name, p.WinnerRank)
		}
		fmt.Fprintln(w)

		if res.Game.Status == models.GameStatusFinished {
			break
		}
	}

	state, err := app.State(ctx, g.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ngame finished after %d draws\n", len(state.DrawnNumbers))
	if len(state.Winners) == 0 {
		fmt.Fprintln(w, "no winners")
		return nil
	}
	for _, p := range state.Winners {
		fmt.Fprintf(w, "winner #%d: %s\n", p.WinnerRank, p.Name)
	}
	return nil
}

func formatCard(card models.Card) string {
	var b strings.Builder
	for _, row := range card {
		for i, n := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%2d", n)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
