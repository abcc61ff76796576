// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/Corphon/SocialGenius/internal/config"
	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/llm"
	_ "github.com/Corphon/SocialGenius/internal/llm/providers/google"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/services"
	"github.com/Corphon/SocialGenius/internal/storage"
	"github.com/Corphon/SocialGenius/internal/utils"
)

const outputDir = "output"

type console struct {
	carousel *services.CarouselService
	posts    *services.ImagePostService
	reels    *services.ReelService
	scanner  *bufio.Scanner
}

func main() {
	fmt.Println("SocialGenius Console")
	fmt.Println("====================")

	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("console_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("Warning: structured logging unavailable: %v", err)
	}
	// keep the console readable; everything still goes to the log file
	utils.GetLogger().SetLogLevel(utils.ERROR)

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig())
	if err != nil {
		log.Fatalf("Failed to initialize provider: %v", err)
	}

	gen := services.NewGenerationService(provider, cfg.VideoPollInterval, nil)
	store := storage.NewMemoryStore(100, cfg.CacheMaxBytes, cfg.SessionTTL)
	c := &console{
		carousel: services.NewCarouselService(gen),
		posts:    services.NewImagePostService(gen),
		reels:    services.NewReelService(gen, storage.NewReelCache(store), nil, cfg.SessionTTL),
		scanner:  bufio.NewScanner(os.Stdin),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		showMenu()
		switch strings.ToLower(c.input("> ")) {
		case "1", "carousel":
			c.runCarousel(ctx)
		case "2", "post":
			c.runImagePost(ctx)
		case "3", "reel":
			c.runReel(ctx)
		case "0", "quit", "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown choice.")
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Println()
	}
}

func showMenu() {
	fmt.Println("What would you like to create?")
	for i, t := range models.ContentTypes() {
		fmt.Printf("  %d. %s\n", i+1, t)
	}
	fmt.Println("  0. Exit")
}

func (c *console) input(prompt string) string {
	fmt.Print(prompt)
	if !c.scanner.Scan() {
		return "exit"
	}
	return strings.TrimSpace(c.scanner.Text())
}

func (c *console) runCarousel(ctx context.Context) {
	topic := c.input("Carousel topic: ")
	result, err := c.carousel.Generate(ctx, topic, func(slides []models.CarouselSlide) {
		done := 0
		for _, s := range slides {
			if !s.ImageLoading {
				done++
			}
		}
		fmt.Printf("  %d/%d slides ready\n", done, len(slides))
	})
	if err != nil {
		printError(err)
		return
	}

	for i, slide := range result.Slides {
		fmt.Printf("\nSlide %d: %s\n", i+1, slide.Caption)
		if slide.ImageURL == "" {
			fmt.Println("  (image failed)")
			continue
		}
		saveMedia(slide.ImageURL, fmt.Sprintf("carousel-slide-%d.jpg", i+1))
	}
}

func (c *console) runImagePost(ctx context.Context) {
	topic := c.input("Post topic: ")
	post, err := c.posts.Generate(ctx, topic)
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("\n%s\n", post.Caption)
	saveMedia(post.ImageURL, "image-post.jpg")
}

func (c *console) runReel(ctx context.Context) {
	session := c.reels.CreateSession()
	defer c.reels.DeleteSession(session.ID)

	topic := c.input("Reel idea: ")
	fmt.Println("Writing script...")
	snapshot, err := c.reels.GenerateScript(ctx, session.ID, topic)
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("\n%s\n\n%s\n\n", snapshot.Script.Title, snapshot.Script.Script)

	for snapshot.NeedsGeneration() {
		answer := c.input(snapshot.ButtonLabel() + "? [y/N] ")
		if !strings.EqualFold(answer, "y") {
			return
		}

		snapshot, err = c.reels.GenerateVideos(ctx, session.ID, func(s *models.ReelSession) {
			if s.Message != "" {
				fmt.Println("  " + s.Message)
			}
		})
		if err != nil {
			printError(err)
			return
		}
		if snapshot.VideoError != "" {
			fmt.Println("Warning: " + snapshot.VideoError)
		}

		for i, scene := range snapshot.Scenes {
			switch {
			case scene.Done():
				saveMedia(scene.VideoURL, fmt.Sprintf("socialgenius-scene-%d.mp4", i+1))
			case scene.Error != "":
				fmt.Printf("Scene %d failed: %s\n", i+1, scene.Error)
			}
		}
	}
}

// saveMedia writes the bytes of a data URI under outputDir
func saveMedia(dataURI, name string) {
	_, data, err := services.ParseDataURI(dataURI)
	if err != nil {
		fmt.Printf("  could not decode %s: %v\n", name, err)
		return
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Printf("  could not create %s: %v\n", outputDir, err)
		return
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Printf("  could not write %s: %v\n", path, err)
		return
	}
	fmt.Printf("  saved %s\n", path)
}

func printError(err error) {
	fmt.Println("Error: " + apperrors.UserMessage(err))
}
