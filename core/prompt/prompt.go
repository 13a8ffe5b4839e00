// Package prompt builds the system and user prompts for every model call:
// blueprint creation, chapter writing, sequel planning and blueprint
// analysis. All functions are pure string constructors.
package prompt

import (
	"fmt"
	"strings"

	"github.com/storyforge-dev/storyforge/core/blueprint"
	"github.com/storyforge-dev/storyforge/internal/utils"
)

const (
	// maxBannedPhrases / maxBannedTokens cap the ban lists folded into a
	// sequel prompt so an accumulated history cannot crowd out the task.
	maxBannedPhrases = 50
	maxBannedTokens  = 80

	// endingExcerptTail limits how much of the previous story's ending is
	// quoted back to the model.
	endingExcerptTail = 2500
)

// BlueprintRequest carries the user's story parameters.
type BlueprintRequest struct {
	Premise      string
	Genre        string
	Tone         string
	WritingStyle string
	ChapterCount int
}

// BlueprintSystem returns the system prompt for story blueprint creation.
// The model is asked for strict JSON; the recovery engine still assumes it
// will not comply.
func BlueprintSystem(req BlueprintRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a story architect. Design a complete story bible for a new work of fiction.\n\n")
	if req.Genre != "" {
		fmt.Fprintf(&sb, "Genre: %s\n", req.Genre)
	}
	if req.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", req.Tone)
	}
	if req.WritingStyle != "" {
		fmt.Fprintf(&sb, "Writing style: %s\n", req.WritingStyle)
	}
	fmt.Fprintf(&sb, `
STRUCTURE: exactly %d chapters, each with a title and a one-paragraph summary that advances the plot.

Return ONLY a JSON object with this shape (no markdown, no prose):
{
  "title": "...",
  "synopsis": "...",
  "genre": "...",
  "tone": "...",
  "cast": [{"name": "...", "role": "...", "descriptor": "..."}],
  "chapters": [{"title": "...", "summary": "..."}]
}

Return valid JSON only.`, req.ChapterCount)
	return sb.String()
}

// BlueprintUser returns the user prompt for blueprint creation.
func BlueprintUser(req BlueprintRequest) string {
	premise := req.Premise
	if premise == "" {
		premise = "Surprise me."
	}
	return "Story premise:\n" + premise + "\n\nCreate the Story Bible."
}

// ChapterRequest carries what the model needs to write one chapter's prose.
type ChapterRequest struct {
	Blueprint           *blueprint.Blueprint
	ChapterIndex        int
	PreviousChapterText string
	Guidance            string
	WritingStyle        string
	Tone                string
	UseGenreTone        bool
}

// ChapterSystem returns the system prompt for prose generation. Chapter text
// is plain prose and never passes through the recovery engine.
func ChapterSystem(req ChapterRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a novelist writing one chapter of an ongoing story. Write immersive, flowing prose. Do not summarise, do not add headings, do not break character.\n")
	if req.WritingStyle != "" {
		fmt.Fprintf(&sb, "Writing style: %s\n", req.WritingStyle)
	}
	if req.UseGenreTone && req.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", req.Tone)
	}
	return sb.String()
}

// ChapterUser returns the user prompt for prose generation, quoting the
// blueprint, the chapter outline and the tail of the previous chapter for
// continuity.
func ChapterUser(req ChapterRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story Bible:\n%s\n\n", utils.JSONToString(req.Blueprint))

	ch := req.Blueprint.Chapters[req.ChapterIndex]
	fmt.Fprintf(&sb, "Write chapter %d: %q\nOutline: %s\n", req.ChapterIndex+1, ch.Title, ch.Summary)

	if req.PreviousChapterText != "" {
		fmt.Fprintf(&sb, "\nHow the previous chapter ended:\n%s\n", tail(req.PreviousChapterText, endingExcerptTail))
	}
	if req.Guidance != "" {
		fmt.Fprintf(&sb, "\nAdditional guidance: %s\n", req.Guidance)
	}
	return sb.String()
}

// SequelSystem returns the system prompt for sequel blueprint creation.
func SequelSystem(chapterCount int, bannedPhrases, bannedDescriptorTokens []string) string {
	var bannedBits []string
	if len(bannedPhrases) > 0 {
		bannedBits = append(bannedBits, "Avoid these phrases: "+strings.Join(capped(bannedPhrases, maxBannedPhrases), "; "))
	}
	if len(bannedDescriptorTokens) > 0 {
		bannedBits = append(bannedBits, "Avoid these descriptor tokens: "+strings.Join(capped(bannedDescriptorTokens, maxBannedTokens), ", "))
	}
	bans := ""
	if len(bannedBits) > 0 {
		bans = strings.Join(bannedBits, "\n") + "\n\n"
	}

	return fmt.Sprintf(`You're developing a sequel to an existing story. Same world, new chapter.

Think about what made the original compelling and how to honor that while giving readers something fresh. The best sequels don't just repeat—they deepen.

SEQUEL CRAFT:
- Pick up threads from the ending, but the central conflict should be new
- Returning characters should have grown or changed; show the weight of what happened
- Introduce 1-2 new characters who challenge the existing dynamics
- Raise the stakes, but keep them personal—not just "bigger explosions"

STRUCTURE: %d chapters. Same JSON schema as the original.

%sReturn valid JSON only.`, chapterCount, bans)
}

// SequelUser returns the user prompt for sequel creation.
func SequelUser(source *blueprint.Blueprint, endingExcerpt string) string {
	return fmt.Sprintf(
		"Original Story Bible:\n%s\n\nHow the first story ended:\n%s\n\nCreate the sequel Story Bible.",
		utils.JSONToString(source),
		tail(endingExcerpt, endingExcerptTail),
	)
}

// DoctorSystem returns the system prompt for blueprint analysis. The model
// must answer with a bare JSON array of suggestion strings.
func DoctorSystem() string {
	return `You are a developmental editor reviewing a story bible before drafting begins.

Identify the 3-5 weakest points: pacing dead zones, characters without agency, chapters that don't advance the plot, unresolved setups.

Respond with ONLY a JSON array of short suggestion strings (no markdown, no prose):
["suggestion one", "suggestion two"]`
}

// DoctorUser returns the user prompt for blueprint analysis.
func DoctorUser(b *blueprint.Blueprint) string {
	return "Story Bible:\n" + utils.JSONToString(b)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func capped(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
