package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge-dev/storyforge/core/blueprint"
)

func testBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Title:    "Emberfall",
		Synopsis: "A city of lanterns goes dark.",
		Chapters: []blueprint.Chapter{
			{Title: "The Last Lamplighter", Summary: "Iris discovers the blackout."},
			{Title: "Under the Hill", Summary: "Iris descends."},
		},
	}
}

func TestBlueprintSystem(t *testing.T) {
	got := BlueprintSystem(BlueprintRequest{
		Genre:        "mystery",
		Tone:         "melancholy",
		WritingStyle: "spare",
		ChapterCount: 12,
	})

	assert.Contains(t, got, "Genre: mystery")
	assert.Contains(t, got, "Tone: melancholy")
	assert.Contains(t, got, "Writing style: spare")
	assert.Contains(t, got, "exactly 12 chapters")
	assert.Contains(t, got, `"chapters"`)
}

func TestBlueprintSystemOmitsEmptyParameters(t *testing.T) {
	got := BlueprintSystem(BlueprintRequest{ChapterCount: 5})

	assert.NotContains(t, got, "Genre:")
	assert.NotContains(t, got, "Tone:")
	assert.NotContains(t, got, "Writing style:")
}

func TestBlueprintUser(t *testing.T) {
	assert.Contains(t, BlueprintUser(BlueprintRequest{Premise: "a heist on the moon"}), "a heist on the moon")
	assert.Contains(t, BlueprintUser(BlueprintRequest{}), "Surprise me.")
}

func TestChapterUser(t *testing.T) {
	got := ChapterUser(ChapterRequest{
		Blueprint:           testBlueprint(),
		ChapterIndex:        1,
		PreviousChapterText: "The lamp went out.",
		Guidance:            "end on a cliffhanger",
	})

	assert.Contains(t, got, "Emberfall")
	assert.Contains(t, got, `Write chapter 2: "Under the Hill"`)
	assert.Contains(t, got, "Outline: Iris descends.")
	assert.Contains(t, got, "The lamp went out.")
	assert.Contains(t, got, "end on a cliffhanger")
}

func TestChapterUserTruncatesPreviousChapter(t *testing.T) {
	long := strings.Repeat("x", endingExcerptTail+100) + "THE END"
	got := ChapterUser(ChapterRequest{
		Blueprint:           testBlueprint(),
		ChapterIndex:        0,
		PreviousChapterText: long,
	})

	assert.Contains(t, got, "THE END")
	assert.NotContains(t, got, strings.Repeat("x", endingExcerptTail))
}

func TestChapterSystemGenreToneToggle(t *testing.T) {
	withTone := ChapterSystem(ChapterRequest{Tone: "wry", UseGenreTone: true})
	assert.Contains(t, withTone, "Tone: wry")

	withoutTone := ChapterSystem(ChapterRequest{Tone: "wry", UseGenreTone: false})
	assert.NotContains(t, withoutTone, "Tone: wry")
}

func TestSequelSystemBanLists(t *testing.T) {
	got := SequelSystem(6, []string{"once upon a time"}, []string{"grizzled", "raven-haired"})

	assert.Contains(t, got, "6 chapters")
	assert.Contains(t, got, "Avoid these phrases: once upon a time")
	assert.Contains(t, got, "Avoid these descriptor tokens: grizzled, raven-haired")
}

func TestSequelSystemCapsBanLists(t *testing.T) {
	phrases := make([]string, maxBannedPhrases+10)
	for i := range phrases {
		phrases[i] = fmt.Sprintf("phrase-%d", i)
	}

	got := SequelSystem(4, phrases, nil)

	assert.Contains(t, got, fmt.Sprintf("phrase-%d", maxBannedPhrases-1))
	assert.NotContains(t, got, fmt.Sprintf("phrase-%d", maxBannedPhrases))
}

func TestSequelSystemNoBans(t *testing.T) {
	got := SequelSystem(4, nil, nil)

	assert.NotContains(t, got, "Avoid these")
	assert.Contains(t, got, "Return valid JSON only.")
}

func TestSequelUser(t *testing.T) {
	got := SequelUser(testBlueprint(), "And then the city slept.")

	assert.Contains(t, got, "Emberfall")
	assert.Contains(t, got, "And then the city slept.")
}

func TestDoctorPrompts(t *testing.T) {
	require.Contains(t, DoctorSystem(), "JSON array")
	assert.Contains(t, DoctorUser(testBlueprint()), "Emberfall")
}
