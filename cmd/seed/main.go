package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alexdean/worst-idea/internal/config"
	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/rules"
	"github.com/alexdean/worst-idea/internal/service"
	"github.com/alexdean/worst-idea/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	docs := rules.NewGuardedStore(store.NewMongoStore(client.Database(cfg.MongoDB)))
	operator := model.Principal{ID: "op_seed", Operator: true}
	gameSvc := service.NewGameService(docs, operator)

	title := "badideas"
	game, err := gameSvc.CreateGame(ctx, title)
	if err != nil {
		log.Fatalf("Failed to create game: %v", err)
	}

	questions := []model.Question{
		{
			Sequence: 0,
			Question: "Your startup has one week of runway left. What do you do?",
			Answers: []string{
				"Pivot to blockchain",
				"Sell the office chairs",
				"Announce a rebrand",
			},
		},
		{
			Sequence: 1,
			Question: "The demo crashes on stage. Best recovery?",
			Answers: []string{
				"Blame the wifi",
				"Call it a feature",
				"Switch to the backup slides",
				"Unplug the projector",
			},
		},
		{
			Sequence: 2,
			Question: "Marketing wants a mascot. Which one?",
			Answers: []string{
				"A procrastinating sloth",
				"A flaming dumpster",
				"An enigmatic crab",
			},
		},
	}

	for _, q := range questions {
		if err := gameSvc.AddQuestion(ctx, title, q); err != nil {
			log.Fatalf("Failed to add question %d: %v", q.Sequence, err)
		}
	}

	fmt.Printf("Seeded game %q (stage: %s) with %d questions\n", game.Title, game.CurrentStage, len(questions))
}
