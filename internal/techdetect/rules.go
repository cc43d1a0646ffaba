package techdetect

import "github.com/MacphersonDesigns/site-scraper/pkg/types"

// rules is the fixed technology signature table. Order within a rule's
// signal list matters: evaluation short-circuits at the first
// high-confidence match.
var rules = []Rule{
	{
		Name:     "React",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "React"},
			{Kind: SignalScriptSrc, Pattern: `react(-dom)?(\.production)?(\.min)?\.js`, VersionPattern: `react(?:-dom)?@([0-9][0-9.]*)`},
			{Kind: SignalInlineScript, Pattern: `React\.createElement|_jsxRuntime|__REACT_DEVTOOLS_GLOBAL_HOOK__`},
			{Kind: SignalSelector, Pattern: `[data-reactroot], [data-reactid]`},
		},
	},
	{
		Name:     "Next.js",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "__NEXT_DATA__"},
			{Kind: SignalScriptSrc, Pattern: `/_next/static/`},
			{Kind: SignalSelector, Pattern: `#__next`},
		},
	},
	{
		Name:     "Vue.js",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "Vue"},
			{Kind: SignalScriptSrc, Pattern: `vue(\.runtime)?(\.global)?(\.prod)?(\.min)?\.js`, VersionPattern: `vue@([0-9][0-9.]*)`},
			{Kind: SignalSelector, Pattern: `[data-v-app], [data-server-rendered]`},
		},
	},
	{
		Name:     "Nuxt",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "__NUXT__"},
			{Kind: SignalSelector, Pattern: `#__nuxt`},
		},
	},
	{
		Name:     "Angular",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalSelector, Pattern: `[ng-version]`},
			{Kind: SignalGlobalVar, Pattern: "ng"},
			{Kind: SignalScriptSrc, Pattern: `angular(\.min)?\.js`, VersionPattern: `angular(?:js)?/([0-9][0-9.]*)`},
		},
	},
	{
		Name:     "Svelte",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalSelector, Pattern: `[class*="svelte-"]`},
			{Kind: SignalInlineScript, Pattern: `__SVELTEKIT__|svelte`},
		},
	},
	{
		Name:     "Alpine.js",
		Category: types.CategoryFramework,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "Alpine"},
			{Kind: SignalSelector, Pattern: `[x-data]`},
		},
	},
	{
		Name:     "htmx",
		Category: types.CategoryLibrary,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "htmx"},
			{Kind: SignalScriptSrc, Pattern: `htmx(\.org)?[@/.].*\.js|htmx(\.min)?\.js`, VersionPattern: `htmx(?:\.org)?@([0-9][0-9.]*)`},
			{Kind: SignalSelector, Pattern: `[hx-get], [hx-post], [hx-trigger]`},
		},
	},
	{
		Name:     "jQuery",
		Category: types.CategoryLibrary,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "jQuery"},
			{Kind: SignalScriptSrc, Pattern: `jquery[.-][0-9.]*(\.min)?\.js|jquery(\.min)?\.js`, VersionPattern: `jquery[.-]([0-9][0-9.]*[0-9])`},
			{Kind: SignalInlineScript, Pattern: `jQuery\(|\$\(document\)\.ready`},
		},
	},
	{
		Name:     "Lodash",
		Category: types.CategoryLibrary,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `lodash(\.core)?(\.min)?\.js`, VersionPattern: `lodash(?:js)?[@/]([0-9][0-9.]*)`},
		},
	},
	{
		Name:     "Moment.js",
		Category: types.CategoryLibrary,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "moment"},
			{Kind: SignalScriptSrc, Pattern: `moment(-with-locales)?(\.min)?\.js`, VersionPattern: `moment(?:js)?[@/]([0-9][0-9.]*)`},
		},
	},
	{
		Name:     "Axios",
		Category: types.CategoryLibrary,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "axios"},
			{Kind: SignalScriptSrc, Pattern: `axios(\.min)?\.js`, VersionPattern: `axios[@/]([0-9][0-9.]*)`},
		},
	},
	{
		Name:     "Redux",
		Category: types.CategoryStateManagement,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "Redux"},
			{Kind: SignalInlineScript, Pattern: `__REDUX_DEVTOOLS_EXTENSION__|createStore\(`},
		},
	},
	{
		Name:     "Zustand",
		Category: types.CategoryStateManagement,
		Signals: []Signal{
			{Kind: SignalInlineScript, Pattern: `zustand`},
		},
	},
	{
		Name:     "Bootstrap",
		Category: types.CategoryUIFramework,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `bootstrap(\.bundle)?(\.min)?\.js`, VersionPattern: `bootstrap[@/]([0-9][0-9.]*)`},
			{Kind: SignalGlobalVar, Pattern: "bootstrap"},
			{Kind: SignalSelector, Pattern: `[class*="col-md-"], [class*="col-lg-"], .navbar-toggler`},
		},
	},
	{
		Name:     "Tailwind CSS",
		Category: types.CategoryUIFramework,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `cdn\.tailwindcss\.com`},
			{Kind: SignalInlineScript, Pattern: `tailwind\.config|tailwindcss`},
			{Kind: SignalSelector, Pattern: `[class*="sm:"], [class*="md:"], [class*="lg:"]`},
		},
	},
	{
		Name:     "Material UI",
		Category: types.CategoryUIFramework,
		Signals: []Signal{
			{Kind: SignalSelector, Pattern: `[class*="MuiBox"], [class*="MuiButton"], [class*="MuiTypography"]`},
			{Kind: SignalInlineScript, Pattern: `MuiThemeProvider|createTheme`},
		},
	},
	{
		Name:     "Chakra UI",
		Category: types.CategoryUIFramework,
		Signals: []Signal{
			{Kind: SignalSelector, Pattern: `[class*="chakra-"]`},
		},
	},
	{
		Name:     "Font Awesome",
		Category: types.CategoryIcons,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `kit\.fontawesome\.com|fontawesome.*\.js`, VersionPattern: `fontawesome[^0-9]*([0-9][0-9.]*)`},
			{Kind: SignalSelector, Pattern: `.fa, .fas, .fab, .far, [class*="fa-"]`},
		},
	},
	{
		Name:     "WordPress",
		Category: types.CategoryCMS,
		Signals: []Signal{
			{Kind: SignalMetaTag, Pattern: "generator", Content: `(?i)wordpress`, VersionPattern: `(?i)wordpress ([0-9][0-9.]*)`},
			{Kind: SignalScriptSrc, Pattern: `/wp-(content|includes)/`},
			{Kind: SignalSelector, Pattern: `[class*="wp-block"]`},
		},
	},
	{
		Name:     "Drupal",
		Category: types.CategoryCMS,
		Signals: []Signal{
			{Kind: SignalMetaTag, Pattern: "generator", Content: `(?i)drupal`, VersionPattern: `(?i)drupal ([0-9][0-9.]*)`},
			{Kind: SignalGlobalVar, Pattern: "Drupal"},
		},
	},
	{
		Name:     "Shopify",
		Category: types.CategoryCMS,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "Shopify"},
			{Kind: SignalScriptSrc, Pattern: `cdn\.shopify\.com`},
		},
	},
	{
		Name:     "Wix",
		Category: types.CategoryCMS,
		Signals: []Signal{
			{Kind: SignalMetaTag, Pattern: "generator", Content: `(?i)wix\.com`},
			{Kind: SignalScriptSrc, Pattern: `static\.parastorage\.com`},
		},
	},
	{
		Name:     "Squarespace",
		Category: types.CategoryCMS,
		Signals: []Signal{
			{Kind: SignalMetaTag, Pattern: "generator", Content: `(?i)squarespace`},
			{Kind: SignalScriptSrc, Pattern: `static1?\.squarespace\.com`},
		},
	},
	{
		Name:     "Google Analytics",
		Category: types.CategoryAnalytics,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `google-analytics\.com/analytics\.js|googletagmanager\.com/gtag/js`},
			{Kind: SignalGlobalVar, Pattern: "gtag"},
			{Kind: SignalInlineScript, Pattern: `gtag\('config'|ga\('create'`},
		},
	},
	{
		Name:     "Google Tag Manager",
		Category: types.CategoryAnalytics,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `googletagmanager\.com/gtm\.js`},
			{Kind: SignalInlineScript, Pattern: `GTM-[A-Z0-9]+`},
		},
	},
	{
		Name:     "Hotjar",
		Category: types.CategoryAnalytics,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "hj"},
			{Kind: SignalScriptSrc, Pattern: `static\.hotjar\.com`},
			{Kind: SignalInlineScript, Pattern: `hjSiteSettings|_hjSettings`},
		},
	},
	{
		Name:     "Webpack",
		Category: types.CategoryBuildTool,
		Signals: []Signal{
			{Kind: SignalGlobalVar, Pattern: "webpackJsonp"},
			{Kind: SignalGlobalVar, Pattern: "webpackChunkLoad"},
			{Kind: SignalInlineScript, Pattern: `webpackJsonp|__webpack_require__`},
		},
	},
	{
		Name:     "Vite",
		Category: types.CategoryBuildTool,
		Signals: []Signal{
			{Kind: SignalScriptSrc, Pattern: `/@vite/client`},
			{Kind: SignalInlineScript, Pattern: `import\.meta\.hot`},
		},
	},
	{
		Name:     "TypeScript",
		Category: types.CategoryLanguage,
		Signals: []Signal{
			{Kind: SignalInlineScript, Pattern: `sourceMappingURL=.*\.ts\.map`},
		},
	},
}
