package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alexdean/worst-idea/internal/model"
)

// LobbyCache handles Redis operations for the public read surface: the open
// game list and individual game documents. The lobby is the hottest
// unauthenticated path, so it reads through Redis instead of scanning Mongo.
type LobbyCache interface {
	SetOpenGames(ctx context.Context, games []*model.Game) error
	GetOpenGames(ctx context.Context) ([]*model.Game, bool, error)
	SetGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, gameID string) (*model.Game, error)
	InvalidateGame(ctx context.Context, gameID string) error
	InvalidateOpenGames(ctx context.Context) error
}

type lobbyCache struct {
	client   *redis.Client
	gameTTL  time.Duration
	lobbyTTL time.Duration
}

// NewLobbyCache creates a new lobby cache
func NewLobbyCache(client *redis.Client) LobbyCache {
	return &lobbyCache{
		client:   client,
		gameTTL:  24 * time.Hour, // games expire after 24h
		lobbyTTL: 10 * time.Second,
	}
}

func (c *lobbyCache) gameKey(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}

const openGamesKey = "lobby:open"

func (c *lobbyCache) SetOpenGames(ctx context.Context, games []*model.Game) error {
	data, err := json.Marshal(games)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, openGamesKey, data, c.lobbyTTL).Err()
}

func (c *lobbyCache) GetOpenGames(ctx context.Context) ([]*model.Game, bool, error) {
	data, err := c.client.Get(ctx, openGamesKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var games []*model.Game
	if err := json.Unmarshal([]byte(data), &games); err != nil {
		return nil, false, err
	}
	return games, true, nil
}

func (c *lobbyCache) SetGame(ctx context.Context, game *model.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.gameKey(game.Title), data, c.gameTTL).Err()
}

func (c *lobbyCache) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	data, err := c.client.Get(ctx, c.gameKey(gameID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var game model.Game
	if err := json.Unmarshal([]byte(data), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *lobbyCache) InvalidateGame(ctx context.Context, gameID string) error {
	return c.client.Del(ctx, c.gameKey(gameID)).Err()
}

func (c *lobbyCache) InvalidateOpenGames(ctx context.Context) error {
	return c.client.Del(ctx, openGamesKey).Err()
}
