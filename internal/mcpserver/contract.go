package mcpserver

// EnvelopeFormatContract describes the envelope record format that harvest
// inbox files must follow. Exposed to LLM consumers so they can interpret
// quarantine reasons and batch contents.
const EnvelopeFormatContract = `# Raido Envelope Record Format

Every record file consumed by the Raido harvest pipeline MUST follow this
structure. One file holds exactly one record.

## Structure

` + "```" + `xml
<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <ListRecords>
    <record>
      <header status="deleted">                <!-- status attr OPTIONAL -->
        <identifier>100181</identifier>        <!-- REQUIRED control number -->
        <datestamp>2013-02-28T10:00:02Z</datestamp>  <!-- REQUIRED -->
      </header>
      <metadata>                               <!-- exactly one child -->
        <record xmlns="http://www.loc.gov/MARC21/slim">
          ...MARC fields...
        </record>
      </metadata>
    </record>
  </ListRecords>
</OAI-PMH>
` + "```" + `

## Rules

1. **Identifier is required.** It is the record's control number and the key
   used for ordering, deduplication, and the deletion ledger.
2. **Datestamp is required.** Records within a batch are written in datestamp
   order, oldest first.
3. **Header status.** ` + "`" + `status="deleted"` + "`" + ` marks a deletion; any other value,
   or no attribute, means create-or-update.
4. **Metadata holds exactly one child element** — the MARCXML record payload.
   Zero children or more than one is a parse failure and the file is
   quarantined.
5. **Archives** arrive in the inbox as ` + "`" + `.tar.gz` + "`" + ` files; each expands to one
   batch directory of envelope files.
6. **Batch output** is a single ` + "`" + `.mrx` + "`" + ` MARCXML collection per batch; deleted
   records contribute their control number to the deletion ledger instead of
   a payload.
`
