// Package directory crawls university staff directories: the per-school
// index pages, their pagination, and the individual profile pages.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// School is one crawlable staff directory.
type School struct {
	Name     string `json:"name"`
	Faculty  string `json:"faculty"`
	StaffURL string `json:"staff_url"`
}

// schoolData lists every staff directory this deployment knows how to crawl,
// grouped by faculty. The list is the University of Leeds school layout.
var schoolData = []School{
	// Faculty of Arts, Humanities and Cultures
	{"IDEA: The Ethics Centre", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/ethics/stafflist"},
	{"Institute for Medieval Studies", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/medieval/stafflist"},
	{"School of Design", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/design/stafflist"},
	{"School of English", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/english/stafflist"},
	{"School of Fine Art, History of Art and Cultural Studies", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/fine-art/stafflist"},
	{"School of History", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/history/stafflist"},
	{"School of Languages, Cultures and Societies", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/languages/stafflist"},
	{"Language Centre", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/language-centre/stafflist"},
	{"School of Media and Communication", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/media/stafflist"},
	{"School of Music", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/music/stafflist"},
	{"School of Performance and Cultural Industries", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/performance/stafflist"},
	{"School of Philosophy, Religion and History of Science", "Faculty of Arts, Humanities and Cultures", "https://ahc.leeds.ac.uk/philosophy/stafflist"},

	// Faculty of Biological Sciences
	{"School of Biology", "Faculty of Biological Sciences", "https://biologicalsciences.leeds.ac.uk/school-of-biology/stafflist"},
	{"School of Biomedical Sciences", "Faculty of Biological Sciences", "https://biologicalsciences.leeds.ac.uk/school-biomedical-sciences/stafflist"},
	{"School of Molecular and Cellular Biology", "Faculty of Biological Sciences", "https://biologicalsciences.leeds.ac.uk/molecular-and-cellular-biology/stafflist"},

	// Faculty of Business
	{"Accounting and Finance", "Faculty of Business", "https://business.leeds.ac.uk/departments-accounting-finance/stafflist"},
	{"Analytics, Technology and Operations", "Faculty of Business", "https://business.leeds.ac.uk/departments-analytics-technology-operations/stafflist"},
	{"Economics", "Faculty of Business", "https://business.leeds.ac.uk/departments-economics/stafflist"},
	{"International Business", "Faculty of Business", "https://business.leeds.ac.uk/departments-international-business/stafflist"},
	{"Management and Organisations", "Faculty of Business", "https://business.leeds.ac.uk/departments-management-organisations/stafflist"},
	{"Marketing", "Faculty of Business", "https://business.leeds.ac.uk/departments-marketing/stafflist"},
	{"People, Work and Employment", "Faculty of Business", "https://business.leeds.ac.uk/departments-people-work-employment/stafflist"},

	// Faculty of Engineering and Physical Sciences
	{"School of Chemical and Process Engineering", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/chemical-engineering/stafflist"},
	{"School of Chemistry", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/chemistry/stafflist"},
	{"School of Civil Engineering", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/civil-engineering/stafflist"},
	{"School of Computer Science", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/computing/stafflist"},
	{"School of Electronic and Electrical Engineering", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/electronic-engineering/stafflist"},
	{"School of Mathematics", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/maths/stafflist"},
	{"School of Mechanical Engineering", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/mechanical-engineering/stafflist"},
	{"School of Physics and Astronomy", "Faculty of Engineering and Physical Sciences", "https://eps.leeds.ac.uk/physics/stafflist"},

	// Faculty of Environment
	{"Institute for Transport Studies", "Faculty of Environment", "https://environment.leeds.ac.uk/transport/stafflist"},
	{"School of Earth and Environment", "Faculty of Environment", "https://environment.leeds.ac.uk/see/stafflist"},
	{"School of Food Science and Nutrition", "Faculty of Environment", "https://environment.leeds.ac.uk/food-nutrition/stafflist"},
	{"School of Geography", "Faculty of Environment", "https://environment.leeds.ac.uk/geography/stafflist"},
	{"Faculty of Environment", "Faculty of Environment", "https://environment.leeds.ac.uk/faculty/stafflist"},

	// Faculty of Medicine and Health
	{"School of Dentistry", "Faculty of Medicine and Health", "https://medicinehealth.leeds.ac.uk/dentistry/stafflist"},
	{"School of Healthcare", "Faculty of Medicine and Health", "https://medicinehealth.leeds.ac.uk/healthcare/stafflist"},
	{"School of Medicine", "Faculty of Medicine and Health", "https://medicinehealth.leeds.ac.uk/medicine/stafflist"},
	{"School of Psychology", "Faculty of Medicine and Health", "https://medicinehealth.leeds.ac.uk/psychology/stafflist"},

	// Faculty of Social Sciences
	{"School of Education", "Faculty of Social Sciences", "https://essl.leeds.ac.uk/education/stafflist"},
	{"School of Law", "Faculty of Social Sciences", "https://essl.leeds.ac.uk/law/stafflist"},
	{"School of Politics and International Studies", "Faculty of Social Sciences", "https://essl.leeds.ac.uk/politics/stafflist"},
	{"School of Sociology and Social Policy", "Faculty of Social Sciences", "https://essl.leeds.ac.uk/sociology/stafflist"},
}

// Schools returns every registered school sorted by name.
func Schools() []School {
	out := make([]School, len(schoolData))
	copy(out, schoolData)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SchoolNames returns the sorted names of every registered school.
func SchoolNames() []string {
	out := make([]string, 0, len(schoolData))
	for _, s := range schoolData {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// LookupSchool finds a school by exact name.
func LookupSchool(name string) (School, bool) {
	for _, s := range schoolData {
		if s.Name == name {
			return s, true
		}
	}
	return School{}, false
}

// LoadSchoolsFile replaces the built-in registry with the JSON array at path.
// Deployments targeting another institution list their directories there.
func LoadSchoolsFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config.
	if err != nil {
		return fmt.Errorf("read schools file: %w", err)
	}
	var schools []School
	if err := json.Unmarshal(data, &schools); err != nil {
		return fmt.Errorf("parse schools file: %w", err)
	}
	if len(schools) == 0 {
		return fmt.Errorf("schools file %s lists no schools", path)
	}
	for i, s := range schools {
		if s.Name == "" || s.StaffURL == "" {
			return fmt.Errorf("schools file entry %d needs name and staff_url", i)
		}
	}
	schoolData = schools
	return nil
}
