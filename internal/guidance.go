package internal

const pythonGuidance = `
Python Guidelines:
- Use matplotlib or plotly.
- Save output using:
    plt.savefig('/app/output/visualization.png')
- For 3D plots: Use mpl_toolkits.
- For static/interactive: Remove plt.show() (optional).
- File must be saved at: /app/output/visualization.png
`

const rGuidance = `
R Guidelines:
- Use ggplot2, plot3D, or base R.
- Save plots using:
    png('/app/output/visualization.png')
    # your plot code
    dev.off()
- 3D plots: Use plot3D.
- Output path is fixed: /app/output/visualization.png
`

// OutputPath is where the backend expects submitted code to write its chart
const OutputPath = "/app/output/visualization.png"

// Guidance returns the usage instructions shown for a language
func Guidance(lang Language) (string, error) {
	switch lang {
	case LanguagePython:
		return pythonGuidance, nil
	case LanguageR:
		return rGuidance, nil
	}
	return "", ErrUnsupportedLanguage
}
