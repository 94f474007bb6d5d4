// Package site holds the static content of the marketing pages and the
// contact inbox.
package site

type Company struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
}

type Stat struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

type Service struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Image       string   `json:"image"`
}

type About struct {
	Title string   `json:"title"`
	Story []string `json:"story"`
	Image string   `json:"image"`
}

type Contact struct {
	Intro   string `json:"intro"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Catalog is everything the home, services, about and contact pages show
type Catalog struct {
	Company  Company   `json:"company"`
	Stats    []Stat    `json:"stats"`
	Services []Service `json:"services"`
	About    About     `json:"about"`
	Contact  Contact   `json:"contact"`
}

const (
	imageWebDev = "https://images.unsplash.com/photo-1563089145-599997674d42?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NTY2NzZ8MHwxfHNlYXJjaHwxfHxwcm9ncmFtbWluZ3xlbnwwfHx8cHVycGxlfDE3NDk1ODI3MTZ8MA&ixlib=rb-4.1.0&q=85"
	imageMobile = "https://images.pexels.com/photos/5475761/pexels-photo-5475761.jpeg"
	imageDesign = "https://images.pexels.com/photos/7657856/pexels-photo-7657856.jpeg"
	imageBrand  = "https://images.unsplash.com/photo-1619708838487-d18b744f2ea4?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NTY2NzV8MHwxfHNlYXJjaHwyfHxjcmVhdGl2ZSUyMGRlc2lnbnxlbnwwfHx8cHVycGxlfDE3NDk1ODI3MTB8MA&ixlib=rb-4.1.0&q=85"
	imageTeam   = "https://images.pexels.com/photos/8728386/pexels-photo-8728386.jpeg"
)

// DefaultCatalog returns a fresh copy of the site content.
func DefaultCatalog() Catalog {
	return Catalog{
		Company: Company{
			Name:    "TROSSACHS GROUP",
			Tagline: "Exclusive Tech Solutions • Web Development • Mobile Apps • UI/UX Design • Brand Identity",
		},
		Stats: []Stat{
			{Number: "500+", Label: "Projects Completed"},
			{Number: "50+", Label: "Happy Clients"},
			{Number: "5", Label: "Years Experience"},
			{Number: "24/7", Label: "Support"},
		},
		Services: []Service{
			{
				Slug:        "web-development",
				Title:       "Web Development",
				Summary:     "Custom web applications with cutting-edge technology",
				Description: "Custom web applications built with the latest technologies",
				Features:    []string{"React/Next.js", "Node.js/Python", "Cloud Deployment", "API Integration"},
				Image:       imageWebDev,
			},
			{
				Slug:        "mobile-apps",
				Title:       "Mobile Apps",
				Summary:     "Native and cross-platform mobile solutions",
				Description: "Native and cross-platform mobile solutions",
				Features:    []string{"iOS/Android", "React Native", "Flutter", "App Store Optimization"},
				Image:       imageMobile,
			},
			{
				Slug:        "ui-ux-design",
				Title:       "UI/UX Design",
				Summary:     "Beautiful and intuitive user experiences",
				Description: "Beautiful and intuitive user experiences",
				Features:    []string{"User Research", "Wireframing", "Prototyping", "Design Systems"},
				Image:       imageDesign,
			},
			{
				Slug:        "brand-identity",
				Title:       "Brand Identity",
				Summary:     "Complete branding and visual identity solutions",
				Description: "Complete branding and visual identity solutions",
				Features:    []string{"Logo Design", "Brand Guidelines", "Marketing Materials", "Digital Assets"},
				Image:       imageBrand,
			},
		},
		About: About{
			Title: "About Trossachs Group",
			Story: []string{
				"Founded with a vision to revolutionize the tech industry, Trossachs Group has emerged as a leading force in exclusive digital solutions. We combine cutting-edge technology with creative excellence to deliver unparalleled results.",
				"Our team of skilled developers, designers, and strategists work collaboratively to transform ideas into powerful digital experiences that drive business growth and innovation.",
			},
			Image: imageTeam,
		},
		Contact: Contact{
			Intro:   "Ready to start your next project? Let's discuss how we can bring your vision to life with our exclusive tech solutions.",
			Email:   "hello@trossachsgroup.com",
			Phone:   "+1 (555) 123-4567",
			Address: "Innovation District, Tech City",
		},
	}
}

// Service looks a service up by slug
func (c Catalog) Service(slug string) (Service, bool) {
	for _, s := range c.Services {
		if s.Slug == slug {
			return s, true
		}
	}
	return Service{}, false
}
