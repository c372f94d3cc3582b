package tableHeaders

var PackageTableHeaders = []string{"Package", "Current", "Latest Stable", "Latest Prerelease", "Change", "Vulnerabilities", "License Change"}

var VulnerabilityTableHeaders = []string{"Package", "Version", "Advisory", "CVE", "Severity", "Summary", "Vulnerable Range", "Patched In", "Published"}

var LicenseTableHeaders = []string{"Package", "Current", "Latest", "Current License", "Latest License", "Severity", "Description"}

var SummaryTableHeaders = []string{"Total", "With Updates", "Up To Date", "Vulnerable", "License Changes", "Critical", "High", "Medium", "Low"}

var SourceTableHeaders = []string{"Name", "Url", "Enabled", "Official", "Requires Auth", "Authenticated"}

var StatsTableHeaders = []string{"Metric", "Value"}
