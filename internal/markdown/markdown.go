// Package markdown writes human-readable client case files.
package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/casefile/internal/models"
)

// FrontMatter is the YAML header of a case file.
type FrontMatter struct {
	ClientID      string `yaml:"client_id"`
	ClientCode    string `yaml:"client_code"`
	Name          string `yaml:"name"`
	HousingStatus string `yaml:"housing_status,omitempty"`
	SpouseID      string `yaml:"spouse_id,omitempty"`
	Created       string `yaml:"created"`
	Updated       string `yaml:"updated,omitempty"`
}

const historyHeading = "## Housing history"

// Path returns the case file path for a client code inside dir.
func Path(dir, code string) string {
	return filepath.Join(dir, code+".md")
}

// RenderCaseFile produces the full case file for c.
func RenderCaseFile(c *models.Client) (string, error) {
	fm := FrontMatter{
		ClientID:      c.ID,
		ClientCode:    c.Code,
		Name:          c.FullName(),
		HousingStatus: c.HousingStatus,
		SpouseID:      c.AssociatedSpouseID,
		Created:       c.CreatedAt.UTC().Format(time.RFC3339),
	}
	head, err := renderFrontMatter(fm)
	if err != nil {
		return "", err
	}

	form := c.Intake
	if form == nil {
		form = &models.IntakeForm{}
	}

	var sb strings.Builder
	sb.WriteString(head)
	fmt.Fprintf(&sb, "\n# %s (%s)\n", c.FullName(), c.Code)

	sb.WriteString("\n## Intake\n\n")
	field(&sb, "Date of birth", form.DateOfBirth)
	if form.Age != nil {
		field(&sb, "Age", fmt.Sprint(*form.Age))
	}
	field(&sb, "Gender", form.Gender)
	field(&sb, "Phone", form.PhoneNumber)
	field(&sb, "Email", form.Email)
	field(&sb, "Income", form.Income)
	field(&sb, "Marital status", form.MaritalStatus)
	field(&sb, "Head of household", form.HeadOfHousehold)
	field(&sb, "Family size", form.FamilySize)
	field(&sb, "Family members serviced", form.FamilyMembersServiced)

	switch {
	case form.AssociatedSpouseID != "":
		sb.WriteString("\n## Spouse\n\n")
		field(&sb, "Linked client", form.AssociatedSpouseID)
	case !form.Spouse.IsZero():
		sb.WriteString("\n## Spouse\n\n")
		sp := form.Spouse
		field(&sb, "Name", strings.TrimSpace(sp.FirstName+" "+sp.LastName))
		field(&sb, "Date of birth", sp.DOB)
		field(&sb, "Gender", sp.Gender)
		field(&sb, "Income", sp.Income)
	}

	if len(form.Dependent) > 0 {
		sb.WriteString("\n## Dependents\n\n")
		for _, d := range form.Dependent {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(d.FirstName + " " + d.LastName))
			if d.Age != nil {
				fmt.Fprintf(&sb, ", age %d", *d.Age)
			}
			if d.TotalIncome != "" {
				fmt.Fprintf(&sb, ", total income %s", d.TotalIncome)
			}
			sb.WriteString("\n")
		}
	}

	if len(form.Pets) > 0 {
		sb.WriteString("\n## Pets\n\n")
		for _, p := range form.Pets {
			sb.WriteString("- ")
			sb.WriteString(p.Species)
			if p.Size != "" {
				fmt.Fprintf(&sb, " (%s)", p.Size)
			}
			if len(p.Purpose) > 0 {
				sb.WriteString(": ")
				sb.WriteString(strings.Join(p.Purpose, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if strings.TrimSpace(form.Notes) != "" {
		sb.WriteString("\n## Notes\n\n")
		sb.WriteString(strings.TrimSpace(form.Notes))
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + historyHeading + "\n\n")
	if c.HousingStatus != "" {
		sb.WriteString(historyLine(c.CreatedAt, c.HousingStatus))
	}
	return sb.String(), nil
}

// WriteCaseFile writes the case file for c into dir, creating dir if needed,
// and returns its path. An existing file is overwritten.
func WriteCaseFile(dir string, c *models.Client) (string, error) {
	content, err := RenderCaseFile(c)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := Path(dir, c.Code)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// AppendHousingChange records h in the case file at path: the front-matter
// status is updated and a dated line is added to the housing history.
func AppendHousingChange(path string, h *models.HousingChange) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	frontmatter, body := splitFrontmatter(string(data))
	if frontmatter == "" {
		return fmt.Errorf("%s: missing front-matter", path)
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(strings.Trim(frontmatter, "-\n")), &fm); err != nil {
		return fmt.Errorf("%s: front-matter: %w", path, err)
	}
	fm.HousingStatus = h.Status
	fm.Updated = h.RecordedAt.UTC().Format(time.RFC3339)
	head, err := renderFrontMatter(fm)
	if err != nil {
		return err
	}

	if !strings.Contains(body, historyHeading) {
		body = strings.TrimRight(body, "\n") + "\n\n" + historyHeading + "\n\n"
	}
	body = strings.TrimRight(body, "\n") + "\n"
	if strings.HasSuffix(body, historyHeading+"\n") {
		body += "\n"
	}
	body += historyLine(h.RecordedAt, h.Status)

	return os.WriteFile(path, []byte(head+body), 0o600)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func renderFrontMatter(fm FrontMatter) (string, error) {
	out, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("markdown: front-matter: %w", err)
	}
	return "---\n" + string(out) + "---\n", nil
}

// splitFrontmatter splits YAML front-matter from the body.
// Returns ("", content) when no front-matter is detected.
func splitFrontmatter(content string) (frontmatter, body string) {
	parts := strings.SplitN(content, "---\n", 3)
	if len(parts) >= 3 && parts[0] == "" {
		return "---\n" + parts[1] + "---", parts[2]
	}
	return "", content
}

func field(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "**%s:** %s\n", label, value)
}

func historyLine(at time.Time, status string) string {
	return "- " + at.UTC().Format(time.DateOnly) + ": " + status + "\n"
}
