package verification_test

import (
	"reflect"
	"strings"
	"testing"

	"meetexport/internal/verification"
)

const closing = " Thanks everyone, see you next week."

// transcript returns a text of exactly n characters ending with ending.
func transcript(n int, ending string) string {
	fillerLen := n - len([]rune(ending))
	filler := strings.Repeat("we walked through the roadmap ", fillerLen/30+1)
	return string([]rune(filler)[:fillerLen]) + ending
}

func newEngine(t *testing.T) *verification.Engine {
	t.Helper()
	engine, err := verification.NewEngine(verification.DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func checkByName(t *testing.T, verdict verification.Verdict, name string) verification.Check {
	t.Helper()
	for _, check := range verdict.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q missing from verdict %+v", name, verdict)
	return verification.Check{}
}

func TestVerifyCompleteTranscript(t *testing.T) {
	engine := newEngine(t)
	verdict := engine.Verify(transcript(25000, closing))

	if !verdict.Complete {
		t.Fatalf("expected complete verdict, failures: %v", verdict.Failures)
	}
	if len(verdict.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", verdict.Failures)
	}
	var names []string
	for _, check := range verdict.Checks {
		names = append(names, check.Name)
	}
	want := []string{verification.CheckLength, verification.CheckCutoff, verification.CheckEnding, verification.CheckTruncation}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("check order = %v, want %v", names, want)
	}
	if msg := checkByName(t, verdict, verification.CheckLength).Message; msg != "Length: 25,000 characters" {
		t.Fatalf("unexpected length message %q", msg)
	}
	if msg := checkByName(t, verdict, verification.CheckEnding).Message; msg != "Found ending phrase: 'thanks'" {
		t.Fatalf("unexpected ending message %q", msg)
	}
}

func TestLengthBoundary(t *testing.T) {
	engine := newEngine(t)

	atThreshold := engine.Verify(transcript(10000, closing))
	if atThreshold.Complete {
		t.Fatal("text of exactly the minimum length must not verify")
	}
	length := checkByName(t, atThreshold, verification.CheckLength)
	if length.Passed {
		t.Fatal("length check should fail at the threshold")
	}
	if length.Message != "Too short: 10,000 characters (minimum 10,000)" {
		t.Fatalf("unexpected message %q", length.Message)
	}
	if len(atThreshold.Failures) != 1 || atThreshold.Failures[0] != verification.CheckLength+": "+length.Message {
		t.Fatalf("expected only the length failure, got %v", atThreshold.Failures)
	}

	above := engine.Verify(transcript(10001, closing))
	if !above.Complete {
		t.Fatalf("threshold+1 should verify, failures: %v", above.Failures)
	}
}

func TestLengthCountsCharactersNotBytes(t *testing.T) {
	engine := newEngine(t)
	text := transcript(10001, " Merci beaucoup, à bientôt. Thanks, goodbye.")
	text = strings.Replace(text, "we", "wé", -1)
	if got := len([]rune(text)); got != 10001 {
		t.Fatalf("fixture has %d runes", got)
	}
	if !checkByName(t, engine.Verify(text), verification.CheckLength).Passed {
		t.Fatal("length should count runes")
	}
}

func TestCutoffBoundary(t *testing.T) {
	engine := newEngine(t)
	cases := []struct {
		name   string
		ending string
		want   bool
	}{
		{"period", " Thanks, bye.", true},
		{"exclamation", " Thanks, bye!", true},
		{"question", " Thanks, bye?", true},
		{"double quote", ` He said "thanks, bye."`, true},
		{"single quote", " She said 'bye'", true},
		{"paren", " (thanks, bye)", true},
		{"trailing whitespace", " Thanks, bye.  \n\t", true},
		{"letter", " Thanks and then we", false},
		{"comma", " Thanks and then,", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			check := checkByName(t, engine.Verify(transcript(300, tc.ending)), verification.CheckCutoff)
			if check.Passed != tc.want {
				t.Fatalf("cutoff passed=%v want %v (%s)", check.Passed, tc.want, check.Message)
			}
		})
	}

	short := checkByName(t, engine.Verify(transcript(199, " Thanks, bye.")), verification.CheckCutoff)
	if short.Passed || short.Message != "Transcript too short to verify" {
		t.Fatalf("text under the window must fail, got %+v", short)
	}
	exact := checkByName(t, engine.Verify(transcript(200, " Thanks, bye.")), verification.CheckCutoff)
	if !exact.Passed {
		t.Fatalf("text of exactly the window length should be checked, got %+v", exact)
	}
}

func TestCutoffMessageShowsTail(t *testing.T) {
	engine := newEngine(t)
	check := checkByName(t, engine.Verify(transcript(400, " and the last thing I wanted to mention is that the budget")), verification.CheckCutoff)
	if !strings.HasPrefix(check.Message, "Ends without punctuation: ...") {
		t.Fatalf("unexpected message %q", check.Message)
	}
	if !strings.HasSuffix(check.Message, "the budget") {
		t.Fatalf("message should quote the tail, got %q", check.Message)
	}
}

func TestWhitespaceOnlyTailFailsCutoff(t *testing.T) {
	engine := newEngine(t)
	text := transcript(100, " Thanks, bye.") + strings.Repeat(" ", 250)
	check := checkByName(t, engine.Verify(text), verification.CheckCutoff)
	if check.Passed {
		t.Fatal("a whitespace-only tail must not count as a clean ending")
	}
}

func TestNaturalEnding(t *testing.T) {
	engine := newEngine(t)

	if !checkByName(t, engine.Verify(transcript(2000, " OK. GOODBYE.")), verification.CheckEnding).Passed {
		t.Fatal("phrase match should be case-insensitive")
	}

	none := checkByName(t, engine.Verify(transcript(2000, " That concludes the agenda.")), verification.CheckEnding)
	if none.Passed || none.Message != "No closing phrase found (goodbye/thanks/bye)" {
		t.Fatalf("expected missing-phrase failure, got %+v", none)
	}

	early := "Thanks for joining." + transcript(1000, " That concludes the agenda.")
	if checkByName(t, engine.Verify(early), verification.CheckEnding).Passed {
		t.Fatal("phrases outside the ending window must not count")
	}

	if checkByName(t, engine.Verify("Thanks, bye."), verification.CheckEnding).Passed {
		t.Fatal("very short texts must fail the ending check")
	}
}

func TestTruncationSignature(t *testing.T) {
	engine := newEngine(t)

	cut := engine.Verify(transcript(20000, " Thanks for having me. I am the lead whose title. Is principal architect."))
	check := checkByName(t, cut, verification.CheckTruncation)
	if check.Passed {
		t.Fatal("expected truncation pattern to be detected")
	}
	if !strings.Contains(check.Message, "whose title. Is") {
		t.Fatalf("message should include the match, got %q", check.Message)
	}
	if cut.Complete {
		t.Fatal("truncated transcript must not verify")
	}

	earlier := transcript(20000, " whose title. Is principal architect."+strings.Repeat(" More discussion here.", 10)+closing)
	if !checkByName(t, engine.Verify(earlier), verification.CheckTruncation).Passed {
		t.Fatal("patterns before the final window must be ignored")
	}

	if checkByName(t, engine.Verify(transcript(150, closing)), verification.CheckTruncation).Passed {
		t.Fatal("texts under the minimum must fail the truncation check")
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	engine := newEngine(t)
	for _, text := range []string{"", transcript(500, " and then"), transcript(12000, closing)} {
		first := engine.Verify(text)
		second := engine.Verify(text)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("verdicts differ:\n%+v\n%+v", first, second)
		}
		if len(first.Checks) != 4 {
			t.Fatalf("expected all four checks, got %d", len(first.Checks))
		}
	}
}

func TestEmptyTextFailsEveryCheck(t *testing.T) {
	verdict := newEngine(t).Verify("")
	if verdict.Complete || len(verdict.Failures) != 4 {
		t.Fatalf("expected four failures, got %+v", verdict)
	}
}

func TestNewEngineRejectsInvalidPattern(t *testing.T) {
	rules := verification.DefaultRules()
	rules.TruncationPatterns = []string{"(unclosed"}
	if _, err := verification.NewEngine(rules); err == nil {
		t.Fatal("expected compile error")
	}
}
