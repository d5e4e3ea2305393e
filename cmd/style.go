package main

import (
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pterm/pterm"

	"github.com/luca-patrignani/poker-lobby/ledger"
	"github.com/luca-patrignani/poker-lobby/registration"
	"github.com/luca-patrignani/poker-lobby/session"
)

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level < slog.LevelDebug:
		return pterm.LogLevelTrace
	case level < slog.LevelInfo:
		return pterm.LogLevelDebug
	case level < slog.LevelWarn:
		return pterm.LogLevelInfo
	case level < slog.LevelError:
		return pterm.LogLevelWarn
	}
	return pterm.LogLevelError
}

// phaseText is the spinner text for a registration status.
func phaseText(st registration.Status) string {
	switch st.Phase {
	case registration.PhaseIdle:
		return "Ready to register"
	case registration.PhaseConnecting:
		return "Waiting for the wallet to authorize an account ..."
	case registration.PhaseSubmitting:
		return "Submitting the registration ..."
	case registration.PhaseAwaitingConfirmation:
		return pterm.Sprintf("Waiting for transaction %s to be confirmed ...", pterm.LightCyan(shortHash(st.TxHash)))
	case registration.PhasePolling:
		if st.HasReading {
			return remainingText(st.Remaining)
		}
		return "Registered, waiting for the other players ..."
	case registration.PhaseComplete:
		return "The session is full"
	case registration.PhaseFailed:
		if st.Err != nil {
			return "Registration failed: " + st.Err.Error()
		}
		return "Registration failed"
	}
	return st.Phase.String()
}

func remainingText(n uint64) string {
	if n == 1 {
		return "1 player left to register"
	}
	return strconv.FormatUint(n, 10) + " players left to register"
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "…" + s[len(s)-4:]
}

func playerPanel(p session.Player) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var status string
	if p.Status {
		status = pterm.LightGreen("Registered")
	} else {
		status = pterm.LightRed("Not registered")
	}
	role := p.Role
	if role == "" {
		role = pterm.Gray("unassigned")
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightYellow("|PLAYER|")).WithTitleTopCenter().Sprintf(
		"%s\nAddress: %s\nRole: %s\nId: %d", status, pterm.LightCyan(p.Address), role, p.ID)}
}

func ledgerPanel(r *ledger.Registry) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	verified := pterm.LightGreen("Chain verified")
	if err := r.Verify(); err != nil {
		verified = pterm.LightRed("Chain invalid: " + err.Error())
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightYellow("|LEDGER|")).WithTitleTopCenter().Sprintf(
		"Blocks: %d\nSeats: %d/%d\n%s", r.Chain().Len(), r.Capacity()-r.PlayersLeft(), r.Capacity(), verified)}
}

// seatTable lists the registered players in seat order, marking self.
func seatTable(players []common.Address, self session.Player) [][]string {
	rows := [][]string{{"Seat", "Address", ""}}
	for i, addr := range players {
		marker := ""
		if addr.Hex() == self.Address {
			marker = "you"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), addr.Hex(), marker})
	}
	return rows
}
