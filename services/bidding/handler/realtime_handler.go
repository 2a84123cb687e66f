package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/realtime"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// RealtimeHandler upgrades authenticated requests to websocket connections
// and routes their events to the registry and the bidding service.
type RealtimeHandler struct {
	ctx        context.Context
	service    BiddingServiceInterface
	registry   *realtime.Registry
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewRealtimeHandler creates a handler. Connections are closed when ctx is cancelled.
// An empty allowedOrigins list, or one containing "*", accepts any origin.
func NewRealtimeHandler(ctx context.Context, service BiddingServiceInterface, registry *realtime.Registry, allowedOrigins []string, sendBuffer int) *RealtimeHandler {
	return &RealtimeHandler{
		ctx:        ctx,
		service:    service,
		registry:   registry,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		// same host is always allowed
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// ServeWS handles GET /ws
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		utils.Warn("ServeWS: upgrade failed", map[string]any{"user_id": user.UserID, "error": err.Error()})
		return
	}

	client := realtime.NewClient(conn, user.UserID, h.sendBuffer)
	helpers.LogSuccess("ServeWS", "client connected", map[string]any{"client_id": client.ID(), "user_id": user.UserID})

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(c.Request.Context(), cancel)
	defer stop()

	client.Run(ctx, h.handleMessage, func(cl *realtime.Client) {
		h.registry.Disconnect(cl)
		utils.Info("ServeWS: client disconnected", map[string]any{"client_id": cl.ID(), "user_id": cl.UserID()})
	})
}

// handleMessage dispatches one inbound event
func (h *RealtimeHandler) handleMessage(ctx context.Context, client *realtime.Client, msg realtime.Message) {
	switch msg.Event {
	case realtime.EventJoinAuction:
		auctionID, err := parseAuctionRef(msg.Data)
		if err != nil {
			realtime.SendError(client, "", "Invalid auction id")
			return
		}
		if err := h.registry.Join(ctx, auctionID, client); err != nil {
			utils.Warn("RealtimeHandler: join failed", map[string]any{"client_id": client.ID(), "auction_id": auctionID, "error": err.Error()})
		}

	case realtime.EventLeaveAuction:
		auctionID, err := parseAuctionRef(msg.Data)
		if err != nil {
			realtime.SendError(client, "", "Invalid auction id")
			return
		}
		h.registry.Leave(auctionID, client)

	case realtime.EventPlaceBid:
		h.placeBid(ctx, client, msg.Data)

	default:
		realtime.SendError(client, "", fmt.Sprintf("Unknown event %q", msg.Event))
	}
}

// placeBid records a bid for the connection's user. The updated auction reaches
// the bidder through the bidUpdated broadcast of any room it joined.
func (h *RealtimeHandler) placeBid(ctx context.Context, client *realtime.Client, data json.RawMessage) {
	var p realtime.PlaceBidPayload
	if err := json.Unmarshal(data, &p); err != nil || p.AuctionID == "" {
		realtime.SendError(client, p.AuctionID, "Invalid bid")
		return
	}
	if p.BidderIdentity != "" && p.BidderIdentity != client.UserID() {
		err := fmt.Errorf("bidder %s on connection of %s: %w", p.BidderIdentity, client.UserID(), biddingerrors.ErrBidderMismatch)
		utils.Warn("RealtimeHandler: bid rejected", map[string]any{"client_id": client.ID(), "auction_id": p.AuctionID, "error": err.Error()})
		realtime.SendError(client, p.AuctionID, helpers.RealtimeMessage(err))
		return
	}

	auction, err := h.service.PlaceBid(ctx, p.AuctionID, client.UserID(), p.Amount)
	if err != nil {
		fields := map[string]any{"client_id": client.ID(), "auction_id": p.AuctionID, "amount": p.Amount, "error": err.Error()}
		if errors.Is(err, biddingerrors.ErrStoreFailure) {
			utils.Error("RealtimeHandler: bid failed", fields)
		} else {
			utils.Warn("RealtimeHandler: bid rejected", fields)
		}
		realtime.SendError(client, p.AuctionID, helpers.RealtimeMessage(err))
		return
	}

	helpers.LogSuccess("RealtimeHandler", "bid recorded successfully", map[string]any{
		"auction_id":  p.AuctionID,
		"user_id":     client.UserID(),
		"current_bid": auction.CurrentBid,
	})
}

// parseAuctionRef accepts either "id" or {"auctionId": "id"}
func parseAuctionRef(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
		return "", errors.New("empty auction id")
	}

	var ref struct {
		AuctionID string `json:"auctionId"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", fmt.Errorf("auction reference: %w", err)
	}
	if ref.AuctionID = strings.TrimSpace(ref.AuctionID); ref.AuctionID == "" {
		return "", errors.New("empty auction id")
	}
	return ref.AuctionID, nil
}
